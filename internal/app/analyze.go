package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arenawatch/internal/domain/cachegate"
	"github.com/okian/arenawatch/internal/domain/delta"
	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/internal/domain/merge"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/internal/domain/types"
	"github.com/okian/arenawatch/pkg/logger"
	"github.com/okian/arenawatch/pkg/metrics"
)

type (
	deltaPayload   = types.Payload[types.Delta]
	rankingPayload = types.Payload[types.RankedModel]
)

// Analyze returns fast risers, new stars and enriched rankings for
// category. When all three cached results are fresh and belong to the same
// run they are returned without touching any source. Otherwise the live
// snapshot is refreshed if it is missing or older than the cache TTL, the
// analysis is recomputed and the cache rewritten.
//
// Missing baselines and failing sources degrade the result; only an unknown
// category is an error.
func (s *Service) Analyze(ctx context.Context, category model.Category) (*types.Analysis, error) {
	if _, err := model.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	start := time.Now()

	if a, ok := s.cached(ctx, category); ok {
		metrics.RecordAnalysisPass(string(category), "fresh", float64(time.Since(start).Milliseconds()))
		return a, nil
	}

	set := s.store.Set(ctx, category)
	if s.fetcher != nil && (set.Live == nil || s.gate.State(set.Live.AsOf) == cachegate.Stale) {
		if err := s.ensureLive(ctx, category); err != nil {
			s.logger.Warn(ctx, "refresh failed; analysing held snapshots",
				logger.String("category", string(category)), logger.Error(err))
		}
		set = s.store.Set(ctx, category)
	}

	fr, ns, rk := s.compute(ctx, set)
	s.record(ctx, category, fr, ns, rk)
	a := assemble(fr, ns, rk)

	outcome := "recomputed"
	if a.Degraded {
		outcome = "degraded"
	}
	metrics.RecordAnalysisPass(string(category), outcome, float64(time.Since(start).Milliseconds()))
	return a, nil
}

// Rankings returns the first limit enriched rankings of category.
func (s *Service) Rankings(ctx context.Context, category model.Category, limit int) ([]types.RankedModel, error) {
	if limit < 1 || limit > s.maxRankingsLimit {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidLimit, limit, s.maxRankingsLimit)
	}
	a, err := s.Analyze(ctx, category)
	if err != nil {
		return nil, err
	}
	return a.Top(limit), nil
}

// MaxRankingsLimit returns the largest accepted rankings limit.
func (s *Service) MaxRankingsLimit() int { return s.maxRankingsLimit }

// Categories returns the analysed categories.
func (s *Service) Categories() []model.Category {
	return append([]model.Category(nil), s.categories...)
}

// cached reads the three entries of category through the gate. It reports
// false unless every entry is fresh, decodes, and carries the same run ID.
func (s *Service) cached(ctx context.Context, category model.Category) (*types.Analysis, bool) {
	var (
		fr, ns deltaPayload
		rk     rankingPayload
	)
	targets := map[cachegate.Kind]any{
		cachegate.KindFastRisers: &fr,
		cachegate.KindNewStars:   &ns,
		cachegate.KindRankings:   &rk,
	}
	for _, kind := range cachegate.Kinds() {
		key := cachegate.Key(category, kind)
		e, st := s.gate.Lookup(ctx, key)
		switch {
		case e == nil:
			metrics.RecordCacheLookup("miss")
			return nil, false
		case st == cachegate.Stale:
			metrics.RecordCacheLookup("stale")
			return nil, false
		}
		if err := json.Unmarshal(e.Payload, targets[kind]); err != nil {
			metrics.RecordCacheLookup("error")
			s.logger.Warn(ctx, "cached payload unreadable; recomputing", logger.String("key", key), logger.Error(err))
			return nil, false
		}
		metrics.RecordCacheLookup("hit")
	}
	if fr.RunID != ns.RunID || fr.RunID != rk.RunID {
		s.logger.Debug(ctx, "cached entries from different runs; recomputing", logger.String("category", string(category)))
		return nil, false
	}
	a := assemble(fr, ns, rk)
	a.Cached = true
	return a, true
}

// compute merges the live snapshot with the auxiliary tables and runs the
// delta engine over the result.
func (s *Service) compute(ctx context.Context, set model.SnapshotSet) (deltaPayload, deltaPayload, rankingPayload) {
	s.mu.RLock()
	pricing, usage := s.pricing, s.usage
	s.mu.RUnlock()
	pricing.Source = "openrouter_pricing"
	usage.Source = "openrouter_usage"

	enriched, stats := merge.Merge(s.resolver, set.Live,
		merge.Input{Table: pricing, Source: identity.SourceOpenRouter},
		merge.Input{Table: usage, Source: identity.SourceOpenRouter},
	)
	for _, st := range stats {
		metrics.RecordMerge(st.Source, st.Matched, st.Unmatched)
		s.logger.Debug(ctx, "merged auxiliary table",
			logger.String("category", string(set.Category)),
			logger.String("source", st.Source),
			logger.Int("matched", st.Matched),
			logger.Int("unmatched", st.Unmatched))
	}

	analysed := set
	analysed.Live = enriched
	res := s.engine.Analyze(ctx, analysed)
	s.observe(res)

	now := s.now()
	byRow := make(map[liveRow]model.ModelRecord, enriched.Len())
	if enriched != nil {
		for _, rec := range enriched.Records {
			r := liveRow{key: rec.Key, modelID: rec.ModelID, rank: rec.Rank}
			if _, ok := byRow[r]; !ok {
				byRow[r] = rec
			}
		}
	}

	base := rankingPayload{
		RunID:       uuid.NewString(),
		Category:    string(set.Category),
		GeneratedAt: now,
		Degraded:    res.Degraded,
		Warnings:    res.Warnings,
	}
	if !res.LiveAsOf.IsZero() {
		t := res.LiveAsOf
		base.LiveAsOf = &t
	}

	fr := deltaPayload{RunID: base.RunID, Category: base.Category, GeneratedAt: now, LiveAsOf: base.LiveAsOf,
		Degraded: res.Degraded, Warnings: res.Warnings, Baseline: baselineInfo(res.Week)}
	ns := deltaPayload{RunID: base.RunID, Category: base.Category, GeneratedAt: now, LiveAsOf: base.LiveAsOf,
		Degraded: res.Degraded, Warnings: res.Warnings, Baseline: baselineInfo(res.Month)}
	rk := base
	rk.Baseline = baselineInfo(res.Week)

	fr.Items = make([]types.Delta, 0, len(res.FastRisers))
	for _, d := range res.FastRisers {
		fr.Items = append(fr.Items, toDelta(d, byRow[rowOf(d)]))
	}
	ns.Items = make([]types.Delta, 0, len(res.NewStars))
	for _, d := range res.NewStars {
		ns.Items = append(ns.Items, toDelta(d, byRow[rowOf(d)]))
	}
	rk.Items = make([]types.RankedModel, 0, len(res.Rankings))
	for _, d := range res.Rankings {
		rk.Items = append(rk.Items, toRanked(d, byRow[rowOf(d)], now))
	}
	return fr, ns, rk
}

// liveRow identifies one enriched live record.
type liveRow struct {
	key     string
	modelID string
	rank    int
}

func rowOf(d model.DeltaRecord) liveRow {
	return liveRow{key: d.Key, modelID: d.ModelID, rank: d.CurrentRank}
}

func (s *Service) observe(res delta.Result) {
	cat := string(res.Category)
	for _, v := range res.Violations {
		metrics.RecordSnapshotViolation(cat, string(v.Kind))
	}
	if res.LiveAsOf.IsZero() {
		metrics.RecordDegradedResult(cat, string(model.SlotLive))
	}
	if !res.Week.Present {
		metrics.RecordDegradedResult(cat, string(model.SlotWeek))
	}
	if !res.Month.Present {
		metrics.RecordDegradedResult(cat, string(model.SlotMonth))
	}
	metrics.UpdateSignalCounts(cat, len(res.FastRisers), len(res.NewStars))
}

// record writes the three payloads. Write failures are logged and counted;
// the freshly computed result is still returned to the caller.
func (s *Service) record(ctx context.Context, category model.Category, fr, ns deltaPayload, rk rankingPayload) {
	payloads := map[cachegate.Kind]any{
		cachegate.KindFastRisers: fr,
		cachegate.KindNewStars:   ns,
		cachegate.KindRankings:   rk,
	}
	for _, kind := range cachegate.Kinds() {
		key := cachegate.Key(category, kind)
		b, err := json.Marshal(payloads[kind])
		if err != nil {
			metrics.RecordCacheWrite(true)
			s.logger.Error(ctx, "cannot encode analysis payload", logger.String("key", key), logger.Error(err))
			continue
		}
		_, err = s.gate.Record(ctx, key, b)
		metrics.RecordCacheWrite(err != nil)
	}
}

func assemble(fr, ns deltaPayload, rk rankingPayload) *types.Analysis {
	return &types.Analysis{
		RunID:       rk.RunID,
		Category:    rk.Category,
		GeneratedAt: rk.GeneratedAt,
		LiveAsOf:    rk.LiveAsOf,
		Degraded:    fr.Degraded || ns.Degraded || rk.Degraded,
		Warnings:    rk.Warnings,
		Baselines:   types.Baselines{Week: fr.Baseline, Month: ns.Baseline},
		FastRisers:  fr.Items,
		NewStars:    ns.Items,
		Rankings:    rk.Items,
	}
}

func baselineInfo(w delta.Window) types.BaselineInfo {
	b := types.BaselineInfo{
		Requested:   string(w.Requested),
		Used:        string(w.Used),
		Present:     w.Present,
		Substituted: w.Substituted,
		AgeHours:    w.Age.Hours(),
	}
	if w.Present {
		t := w.AsOf
		b.AsOf = &t
	}
	return b
}

func tags(d model.DeltaRecord) []string {
	if len(d.Tags) == 0 {
		return nil
	}
	out := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		out[i] = string(t)
	}
	return out
}

func toDelta(d model.DeltaRecord, rec model.ModelRecord) types.Delta {
	return types.Delta{
		Key:          d.Key,
		ModelID:      d.ModelID,
		DisplayName:  d.DisplayName,
		CurrentRank:  d.CurrentRank,
		PreviousRank: d.PreviousRank,
		Delta:        d.Delta,
		Score:        rec.Score,
		PriceInput:   rec.PriceInput,
		PriceOutput:  rec.PriceOutput,
		Tags:         tags(d),
	}
}

func toRanked(d model.DeltaRecord, rec model.ModelRecord, now time.Time) types.RankedModel {
	return types.RankedModel{
		Key:           d.Key,
		ModelID:       d.ModelID,
		DisplayName:   d.DisplayName,
		Rank:          d.CurrentRank,
		Score:         rec.Score,
		Votes:         rec.Votes,
		PreviousRank:  d.PreviousRank,
		Delta:         d.Delta,
		PriceInput:    rec.PriceInput,
		PriceOutput:   rec.PriceOutput,
		UsageRank:     rec.UsageRank,
		UsageTokens:   rec.UsageTokens,
		Speed:         rec.Speed,
		ContextLength: rec.ContextLength,
		DaysOnBoard:   rec.DaysOnBoard(now),
		Tags:          tags(d),
	}
}
