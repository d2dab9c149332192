package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
	"github.com/okian/arenawatch/pkg/metrics"
)

// LiveData is one round of live fetching.
type LiveData struct {
	FetchedAt time.Time
	Snapshots map[model.Category]*model.Snapshot
	Pricing   model.AuxTable
	Usage     model.AuxTable
	Warnings  []string
}

// Sources fetches every live input concurrently.
type Sources struct {
	arena      *Arena
	openRouter *OpenRouter
	logger     logger.Logger
	now        func() time.Time
}

// NewSources combines the live scrapers. openRouter may be nil, in which
// case the auxiliary tables stay empty.
func NewSources(arena *Arena, openRouter *OpenRouter, l logger.Logger) *Sources {
	if l == nil {
		l = logger.Nop()
	}
	return &Sources{arena: arena, openRouter: openRouter, logger: l, now: time.Now}
}

// FetchLive fetches the leaderboards of categories and both auxiliary
// tables in parallel. A failing auxiliary source leaves its table empty; a
// failing category is left out. ErrNoLiveData is returned only when no
// category could be fetched.
func (s *Sources) FetchLive(ctx context.Context, categories ...model.Category) (*LiveData, error) {
	if len(categories) == 0 {
		categories = model.Categories()
	}
	now := s.now()
	out := &LiveData{
		FetchedAt: now,
		Snapshots: make(map[model.Category]*model.Snapshot, len(categories)),
		Pricing:   model.AuxTable{Source: SourceOpenRouter, FetchedAt: now},
		Usage:     model.AuxTable{Source: SourceOpenRouter, FetchedAt: now},
	}

	var mu sync.Mutex
	warn := func(source string, err error) {
		mu.Lock()
		out.Warnings = append(out.Warnings, source+": "+err.Error())
		mu.Unlock()
		s.logger.Warn(ctx, "source fetch failed", logger.String("source", source), logger.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, cat := range categories {
		g.Go(func() error {
			source := "arena_" + string(cat)
			var snap *model.Snapshot
			err := timed(source, func() (err error) {
				snap, err = s.arena.FetchCategory(gctx, cat)
				return err
			})
			if err != nil {
				warn(source, err)
				return nil
			}
			mu.Lock()
			out.Snapshots[cat] = snap
			mu.Unlock()
			return nil
		})
	}
	if s.openRouter != nil {
		g.Go(func() error {
			var t model.AuxTable
			err := timed("openrouter_pricing", func() (err error) {
				t, err = s.openRouter.FetchPricing(gctx)
				return err
			})
			if err != nil {
				warn("openrouter_pricing", err)
				return nil
			}
			mu.Lock()
			out.Pricing = t
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			var t model.AuxTable
			err := timed("openrouter_usage", func() (err error) {
				t, err = s.openRouter.FetchUsage(gctx)
				return err
			})
			if err != nil {
				warn("openrouter_usage", err)
				return nil
			}
			mu.Lock()
			out.Usage = t
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(out.Snapshots) == 0 {
		return out, ErrNoLiveData
	}
	return out, nil
}

func timed(source string, fn func() error) error {
	start := time.Now()
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordSourceFetch(source, outcome, float64(time.Since(start).Milliseconds()))
	return err
}
