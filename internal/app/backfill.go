package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
)

// backfillOffsets lists, per slot, the ages in days tried in order until an
// archived capture is found.
var backfillOffsets = map[model.Slot][]int{
	model.SlotWeek:  {7},
	model.SlotMonth: {30, 27, 25, 21},
}

// BackfillSlot is one slot filled from the archive.
type BackfillSlot struct {
	Category model.Category `json:"category"`
	Slot     model.Slot     `json:"slot"`
	AsOf     time.Time      `json:"as_of"`
	Records  int            `json:"records"`
}

// BackfillResult reports what Backfill filled and what it could not.
type BackfillResult struct {
	RunID   string         `json:"run_id"`
	Filled  []BackfillSlot `json:"filled"`
	Missing []string       `json:"missing,omitempty"`
}

// Backfill loads week-old and month-old leaderboards of every category from
// the archive into their slots, then drops cached analyses. Categories and
// slots without a capture are reported in Missing and leave the slot as is.
func (s *Service) Backfill(ctx context.Context) (*BackfillResult, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	res := &BackfillResult{RunID: uuid.NewString()}
	log := s.logger.Named("backfill")
	now := s.now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, cat := range s.categories {
		for _, slot := range []model.Slot{model.SlotWeek, model.SlotMonth} {
			g.Go(func() error {
				snap, err := s.fetchArchived(gctx, cat, slot, now)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					log.Warn(gctx, "no archived snapshot",
						logger.String("runID", res.RunID),
						logger.String("category", string(cat)),
						logger.String("slot", string(slot)),
						logger.Error(err))
					mu.Lock()
					res.Missing = append(res.Missing, string(cat)+"/"+string(slot))
					mu.Unlock()
					return nil
				}
				if err := s.store.Put(gctx, slot, snap); err != nil {
					return err
				}
				mu.Lock()
				res.Filled = append(res.Filled, BackfillSlot{Category: cat, Slot: slot, AsOf: snap.AsOf, Records: snap.Len()})
				mu.Unlock()
				log.Info(gctx, "backfilled snapshot",
					logger.String("runID", res.RunID),
					logger.String("category", string(cat)),
					logger.String("slot", string(slot)),
					logger.Time("asOf", snap.AsOf),
					logger.Int("records", snap.Len()))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	s.Invalidate(ctx)
	return res, nil
}

func (s *Service) fetchArchived(ctx context.Context, cat model.Category, slot model.Slot, now time.Time) (*model.Snapshot, error) {
	var errs []error
	for _, days := range backfillOffsets[slot] {
		snap, err := s.archive.FetchAt(ctx, cat, now.Add(-time.Duration(days)*24*time.Hour))
		if err == nil {
			return snap, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
