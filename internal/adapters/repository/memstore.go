package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
	"github.com/okian/arenawatch/pkg/metrics"
)

// slots is one published, immutable view of every category.
type slots map[model.Category]model.SnapshotSet

// MemoryStore is the in-process Store. Readers load an immutable view
// through an atomic pointer; writers are serialized and publish a new view.
type MemoryStore struct {
	mu      sync.Mutex
	current atomic.Pointer[slots]

	persister Persister
	logger    logger.Logger
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := slots{}
	s.current.Store(&empty)
	return s
}

// Hydrate replaces the in-memory state with whatever the persister holds.
// It is a no-op without a persister.
func (s *MemoryStore) Hydrate(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	sets, err := s.persister.LoadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.mu.Lock()
	next := s.cloneLocked()
	for _, set := range sets {
		next[set.Category] = set
	}
	s.current.Store(&next)
	s.mu.Unlock()

	for _, set := range sets {
		for _, slot := range model.Slots() {
			s.observe(set.Category, slot, set.Get(slot))
		}
	}
	s.logger.Info(ctx, "snapshot store hydrated", logger.Int("categories", len(sets)))
	return nil
}

// PutLive implements Store.PutLive.
//
// The outgoing live snapshot replaces the week snapshot when the week slot
// is empty or the outgoing one is closer to seven days old, measured at the
// new snapshot's AsOf. A week snapshot displaced that way moves on to the
// month slot under the same rule with a thirty day target.
func (s *MemoryStore) PutLive(ctx context.Context, snap *model.Snapshot) (Rotation, error) {
	if snap == nil {
		return Rotation{}, ErrNilSnapshot
	}

	s.mu.Lock()
	next := s.cloneLocked()
	cur := next[snap.Category]
	if cur.Live != nil && snap.AsOf.Before(cur.Live.AsOf) {
		s.mu.Unlock()
		return Rotation{}, fmt.Errorf("%w: have %s, got %s", ErrOutOfOrder,
			cur.Live.AsOf.Format(time.RFC3339), snap.AsOf.Format(time.RFC3339))
	}
	set, changed := rotate(cur, snap)
	set.Category = snap.Category
	next[snap.Category] = set
	s.current.Store(&next)
	s.mu.Unlock()

	rot := Rotation{Category: snap.Category, Changed: changed}
	for _, slot := range changed {
		if slot != model.SlotLive {
			metrics.RecordSnapshotRotation(string(snap.Category), string(slot))
			s.logger.Info(ctx, "snapshot rotated",
				logger.String("category", string(snap.Category)),
				logger.String("slot", string(slot)),
				logger.Time("as_of", set.Get(slot).AsOf))
		}
		s.observe(snap.Category, slot, set.Get(slot))
		s.persist(ctx, slot, set.Get(slot))
	}
	return rot, nil
}

// Put implements Store.Put.
func (s *MemoryStore) Put(ctx context.Context, slot model.Slot, snap *model.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	if slot.TargetAge() == 0 && slot != model.SlotLive {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	s.mu.Lock()
	next := s.cloneLocked()
	set := next[snap.Category]
	set.Category = snap.Category
	switch slot {
	case model.SlotLive:
		set.Live = snap
	case model.SlotWeek:
		set.Week = snap
	case model.SlotMonth:
		set.Month = snap
	}
	next[snap.Category] = set
	s.current.Store(&next)
	s.mu.Unlock()

	s.observe(snap.Category, slot, snap)
	s.persist(ctx, slot, snap)
	return nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, category model.Category) model.SnapshotSet {
	set, ok := (*s.current.Load())[category]
	if !ok {
		return model.SnapshotSet{Category: category}
	}
	return set
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	n := 0
	for _, set := range *s.current.Load() {
		for _, slot := range model.Slots() {
			if set.Get(slot) != nil {
				n++
			}
		}
	}
	return n
}

func (s *MemoryStore) cloneLocked() slots {
	cur := *s.current.Load()
	next := make(slots, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	return next
}

func (s *MemoryStore) observe(category model.Category, slot model.Slot, snap *model.Snapshot) {
	if snap == nil {
		return
	}
	metrics.UpdateSnapshot(string(category), string(slot), snap.Len(), snap.Age(s.now()))
}

// persist writes through to the persister. Failures are logged and counted;
// the in-memory state stays authoritative.
func (s *MemoryStore) persist(ctx context.Context, slot model.Slot, snap *model.Snapshot) {
	if s.persister == nil || snap == nil {
		return
	}
	if err := s.persister.SaveSnapshot(ctx, slot, snap); err != nil {
		metrics.RecordErrorByComponent("repository", "persist")
		s.logger.Warn(ctx, "snapshot persistence failed",
			logger.String("category", string(snap.Category)),
			logger.String("slot", string(slot)),
			logger.Error(err))
	}
}

func rotate(set model.SnapshotSet, live *model.Snapshot) (model.SnapshotSet, []model.Slot) {
	next := set
	next.Live = live
	changed := []model.Slot{model.SlotLive}

	outgoing := set.Live
	if outgoing == nil || !outgoing.AsOf.Before(live.AsOf) {
		return next, changed
	}
	if !closer(outgoing, set.Week, live.AsOf, model.SlotWeek.TargetAge()) {
		return next, changed
	}
	next.Week = outgoing
	changed = append(changed, model.SlotWeek)

	if displaced := set.Week; displaced != nil && closer(displaced, set.Month, live.AsOf, model.SlotMonth.TargetAge()) {
		next.Month = displaced
		changed = append(changed, model.SlotMonth)
	}
	return next, changed
}

// closer reports whether candidate should replace occupant in a slot
// aiming for target age at ref.
func closer(candidate, occupant *model.Snapshot, ref time.Time, target time.Duration) bool {
	if occupant == nil {
		return true
	}
	return distance(candidate.Age(ref), target) < distance(occupant.Age(ref), target)
}

func distance(age, target time.Duration) time.Duration {
	if d := age - target; d >= 0 {
		return d
	}
	return target - age
}
