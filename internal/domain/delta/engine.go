// Package delta compares ranked snapshots and classifies rank movements.
package delta

import (
	"context"
	"sort"
	"time"

	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
)

// Engine computes rank deltas, fast risers and new stars.
type Engine struct {
	fastRiserLimit         int
	minImprovement         int
	newStarMaxRank         int
	newStarBaselineMinRank int
	baselineAbsentNewStars bool
	weekTolerance          time.Duration

	resolver *identity.Resolver
	logger   logger.Logger
	now      func() time.Time
}

// New constructs an Engine with defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		fastRiserLimit:         DefaultFastRiserLimit,
		minImprovement:         DefaultMinImprovement,
		newStarMaxRank:         DefaultNewStarMaxRank,
		newStarBaselineMinRank: DefaultNewStarBaselineMinRank,
		baselineAbsentNewStars: true,
		weekTolerance:          DefaultWeekTolerance,
		logger:                 logger.Nop(),
		now:                    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = identity.Default()
	}
	return e
}

// Comparison is the outcome of ComputeDeltas.
type Comparison struct {
	// Deltas holds one record per current record, ordered by current rank
	// then key.
	Deltas []model.DeltaRecord
	// BaselinePresent is false when there was no baseline to compare with.
	BaselinePresent bool
	// Degraded marks results computed without a baseline or from an empty
	// current snapshot.
	Degraded bool
	// Violations lists ranking contract violations in either input.
	Violations []model.Violation
}

// ComputeDeltas pairs every current record with the same identity's rank in
// baseline. Previous rank and delta are nil when baseline is nil or lacks
// the identity. Malformed inputs are ranked best-effort by the rank values
// given and the violations are logged.
func (e *Engine) ComputeDeltas(ctx context.Context, current, baseline *model.Snapshot) Comparison {
	cmp := Comparison{
		BaselinePresent: baseline != nil,
		Degraded:        baseline == nil || current.Len() == 0,
	}

	var prevRank map[string]int
	if baseline != nil {
		prevRank, cmp.Violations = e.index(ctx, baseline)
	}
	if current.Len() == 0 {
		return cmp
	}

	records := current.Sorted()
	cmp.Violations = append(cmp.Violations, e.check(ctx, current)...)
	seen := make(map[string]bool, len(records))
	cmp.Deltas = make([]model.DeltaRecord, 0, len(records))
	for _, rec := range records {
		key := e.keyOf(current, rec)
		if seen[key] {
			v := model.Violation{Kind: model.ViolationDuplicateIdentity, Rank: rec.Rank, Key: key}
			cmp.Violations = append(cmp.Violations, v)
			e.warn(ctx, current, v)
		}
		seen[key] = true

		d := model.DeltaRecord{
			Key:         key,
			ModelID:     rec.ModelID,
			DisplayName: rec.DisplayName,
			Category:    current.Category,
			CurrentRank: rec.Rank,
		}
		if d.DisplayName == "" {
			d.DisplayName = identity.DisplayName(rec.ModelID)
		}
		if prev, ok := prevRank[key]; ok {
			p := prev
			delta := rec.Rank - prev
			d.PreviousRank = &p
			d.Delta = &delta
		}
		cmp.Deltas = append(cmp.Deltas, d)
	}
	sort.SliceStable(cmp.Deltas, func(i, j int) bool {
		a, b := cmp.Deltas[i], cmp.Deltas[j]
		if a.CurrentRank != b.CurrentRank {
			return a.CurrentRank < b.CurrentRank
		}
		return a.Key < b.Key
	})
	return cmp
}

// index maps baseline identities to their best rank.
func (e *Engine) index(ctx context.Context, s *model.Snapshot) (map[string]int, []model.Violation) {
	violations := e.check(ctx, s)
	out := make(map[string]int, len(s.Records))
	for _, rec := range s.Records {
		key := e.keyOf(s, rec)
		if prev, ok := out[key]; ok {
			v := model.Violation{Kind: model.ViolationDuplicateIdentity, Rank: rec.Rank, Key: key}
			violations = append(violations, v)
			e.warn(ctx, s, v)
			if prev <= rec.Rank {
				continue
			}
		}
		out[key] = rec.Rank
	}
	return out, violations
}

func (e *Engine) check(ctx context.Context, s *model.Snapshot) []model.Violation {
	violations := s.Validate()
	for _, v := range violations {
		e.warn(ctx, s, v)
	}
	return violations
}

func (e *Engine) warn(ctx context.Context, s *model.Snapshot, v model.Violation) {
	e.logger.Warn(ctx, "snapshot violates ranking contract",
		logger.String("category", string(s.Category)),
		logger.Time("as_of", s.AsOf),
		logger.String("kind", string(v.Kind)),
		logger.Int("rank", v.Rank),
		logger.String("key", v.Key),
	)
}

func (e *Engine) keyOf(s *model.Snapshot, rec model.ModelRecord) string {
	raw := rec.ModelID
	if raw == "" {
		raw = rec.Key
	}
	source := identity.Source(s.Source)
	if source == identity.SourceAny {
		source = identity.SourceArena
	}
	return e.resolver.Resolve(source, raw)
}

// FastRisers selects models with a baseline rank that improved by at least
// the minimum improvement, largest improvement first. Ties go to the better
// current rank, then the canonical key. At most the configured limit is
// returned.
func (e *Engine) FastRisers(cmp Comparison) []model.DeltaRecord {
	if !cmp.BaselinePresent {
		return nil
	}
	var out []model.DeltaRecord
	seen := make(map[string]bool)
	for _, d := range cmp.Deltas {
		if d.PreviousRank == nil || d.Delta == nil || *d.Delta > -e.minImprovement || seen[d.Key] {
			continue
		}
		seen[d.Key] = true
		out = append(out, d.WithTag(model.TagFastRiser))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if *a.Delta != *b.Delta {
			return *a.Delta < *b.Delta
		}
		if a.CurrentRank != b.CurrentRank {
			return a.CurrentRank < b.CurrentRank
		}
		return a.Key < b.Key
	})
	if len(out) > e.fastRiserLimit {
		out = out[:e.fastRiserLimit]
	}
	return out
}

// NewStars selects models now ranked within the top tier that were absent
// from the baseline or ranked below the baseline threshold. Without any
// baseline every top-tier model qualifies when the fallback is enabled.
// Ordered by current rank, then key.
func (e *Engine) NewStars(cmp Comparison) []model.DeltaRecord {
	if !cmp.BaselinePresent && !e.baselineAbsentNewStars {
		return nil
	}
	var out []model.DeltaRecord
	seen := make(map[string]bool)
	for _, d := range cmp.Deltas {
		if d.CurrentRank < 1 || d.CurrentRank > e.newStarMaxRank || seen[d.Key] {
			continue
		}
		if d.PreviousRank != nil && *d.PreviousRank <= e.newStarBaselineMinRank {
			continue
		}
		seen[d.Key] = true
		out = append(out, d.WithTag(model.TagNewStar))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CurrentRank != out[j].CurrentRank {
			return out[i].CurrentRank < out[j].CurrentRank
		}
		return out[i].Key < out[j].Key
	})
	return out
}
