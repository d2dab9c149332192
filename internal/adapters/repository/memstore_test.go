package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/arenawatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var day = 24 * time.Hour

func snapAt(cat model.Category, asOf time.Time, ids ...string) *model.Snapshot {
	s := &model.Snapshot{Category: cat, AsOf: asOf, Source: "arena"}
	for i, id := range ids {
		s.Records = append(s.Records, model.ModelRecord{ModelID: id, Rank: i + 1, Category: cat})
	}
	return s
}

type recordingPersister struct {
	saved   map[model.Slot]*model.Snapshot
	loadErr error
	saveErr error
	sets    []model.SnapshotSet
}

func (p *recordingPersister) SaveSnapshot(_ context.Context, slot model.Slot, s *model.Snapshot) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	if p.saved == nil {
		p.saved = make(map[model.Slot]*model.Snapshot)
	}
	p.saved[slot] = s
	return nil
}

func (p *recordingPersister) LoadSnapshots(context.Context) ([]model.SnapshotSet, error) {
	return p.sets, p.loadErr
}

func TestMemoryStorePutLive(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given an empty memory store", t, func() {
		s := NewMemoryStore()

		Convey("An unknown category has an empty set", func() {
			set := s.Set(ctx, model.CategoryCoding)
			So(set.Category, ShouldEqual, model.CategoryCoding)
			So(set.Live, ShouldBeNil)
			So(s.Count(ctx), ShouldEqual, 0)
		})

		Convey("A nil snapshot is rejected", func() {
			_, err := s.PutLive(ctx, nil)
			So(errors.Is(err, ErrNilSnapshot), ShouldBeTrue)
		})

		Convey("The first live snapshot fills only the live slot", func() {
			rot, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "a"))
			So(err, ShouldBeNil)
			So(rot.Changed, ShouldResemble, []model.Slot{model.SlotLive})
			set := s.Set(ctx, model.CategoryGeneral)
			So(set.Live, ShouldNotBeNil)
			So(set.Week, ShouldBeNil)
			So(set.Month, ShouldBeNil)
		})

		Convey("The second live snapshot pushes the first into the empty week slot", func() {
			first := snapAt(model.CategoryGeneral, t0, "a")
			_, _ = s.PutLive(ctx, first)
			rot, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0.Add(7*day), "b"))
			So(err, ShouldBeNil)
			So(rot.Moved(model.SlotWeek), ShouldBeTrue)
			So(rot.Moved(model.SlotMonth), ShouldBeFalse)
			So(s.Set(ctx, model.CategoryGeneral).Week, ShouldEqual, first)
			So(s.Count(ctx), ShouldEqual, 2)
		})

		Convey("An older live snapshot is refused and state is untouched", func() {
			_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "a"))
			_, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0.Add(-time.Hour), "z"))
			So(errors.Is(err, ErrOutOfOrder), ShouldBeTrue)
			So(s.Set(ctx, model.CategoryGeneral).Live.Records[0].ModelID, ShouldEqual, "a")
		})

		Convey("A refresh with the same timestamp only replaces live", func() {
			_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "a"))
			rot, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "b"))
			So(err, ShouldBeNil)
			So(rot.Changed, ShouldHaveLength, 1)
			So(s.Set(ctx, model.CategoryGeneral).Week, ShouldBeNil)
		})

		Convey("Categories rotate independently", func() {
			_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "a"))
			_, _ = s.PutLive(ctx, snapAt(model.CategoryCoding, t0, "c"))
			So(s.Set(ctx, model.CategoryGeneral).Live.Records[0].ModelID, ShouldEqual, "a")
			So(s.Set(ctx, model.CategoryCoding).Live.Records[0].ModelID, ShouldEqual, "c")
		})
	})

	Convey("Given a store whose week slot holds a six-day-old snapshot", t, func() {
		s := NewMemoryStore()
		week := snapAt(model.CategoryGeneral, t0.Add(-6*day), "w")
		So(s.Put(ctx, model.SlotWeek, week), ShouldBeNil)
		_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "l"))

		Convey("A live snapshot two hours later does not displace the week baseline", func() {
			rot, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0.Add(2*time.Hour), "m"))
			So(err, ShouldBeNil)
			So(rot.Moved(model.SlotWeek), ShouldBeFalse)
			So(s.Set(ctx, model.CategoryGeneral).Week, ShouldEqual, week)
		})

		Convey("Once the outgoing live is closer to seven days, week moves on to month", func() {
			rot, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0.Add(7*day), "m"))
			So(err, ShouldBeNil)
			So(rot.Moved(model.SlotWeek), ShouldBeTrue)
			So(rot.Moved(model.SlotMonth), ShouldBeTrue)
			set := s.Set(ctx, model.CategoryGeneral)
			So(set.Week.Records[0].ModelID, ShouldEqual, "l")
			So(set.Month, ShouldEqual, week)
		})
	})

	Convey("Given a store whose month slot holds a thirty-day-old snapshot", t, func() {
		s := NewMemoryStore()
		month := snapAt(model.CategoryGeneral, t0.Add(-23*day), "mo")
		_ = s.Put(ctx, model.SlotMonth, month)
		_ = s.Put(ctx, model.SlotWeek, snapAt(model.CategoryGeneral, t0.Add(-10*day), "w"))
		_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "l"))

		Convey("A displaced week further from thirty days leaves month alone", func() {
			rot, _ := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0.Add(7*day), "n"))
			So(rot.Moved(model.SlotWeek), ShouldBeTrue)
			So(rot.Moved(model.SlotMonth), ShouldBeFalse)
			So(s.Set(ctx, model.CategoryGeneral).Month, ShouldEqual, month)
		})
	})

	Convey("Put rejects unknown slots", t, func() {
		s := NewMemoryStore()
		err := s.Put(ctx, model.Slot("year"), snapAt(model.CategoryGeneral, t0, "a"))
		So(errors.Is(err, ErrUnknownSlot), ShouldBeTrue)
	})
}

func TestMemoryStorePersistence(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a store with a persister", t, func() {
		p := &recordingPersister{}
		s := NewMemoryStore(WithPersister(p))

		Convey("Every changed slot is written through", func() {
			_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "a"))
			_, _ = s.PutLive(ctx, snapAt(model.CategoryGeneral, t0.Add(7*day), "b"))
			So(p.saved[model.SlotLive].Records[0].ModelID, ShouldEqual, "b")
			So(p.saved[model.SlotWeek].Records[0].ModelID, ShouldEqual, "a")
		})

		Convey("Persistence failures do not fail the write", func() {
			p.saveErr = errors.New("read-only")
			_, err := s.PutLive(ctx, snapAt(model.CategoryGeneral, t0, "a"))
			So(err, ShouldBeNil)
			So(s.Set(ctx, model.CategoryGeneral).Live, ShouldNotBeNil)
		})

		Convey("Hydrate installs the persisted sets", func() {
			p.sets = []model.SnapshotSet{{
				Category: model.CategoryCoding,
				Week:     snapAt(model.CategoryCoding, t0, "x"),
			}}
			So(s.Hydrate(ctx), ShouldBeNil)
			So(s.Set(ctx, model.CategoryCoding).Week.Records[0].ModelID, ShouldEqual, "x")
		})

		Convey("Hydrate surfaces load failures", func() {
			p.loadErr = errors.New("corrupt")
			So(errors.Is(s.Hydrate(ctx), ErrPersist), ShouldBeTrue)
		})
	})

	Convey("Hydrate without a persister is a no-op", t, func() {
		So(NewMemoryStore().Hydrate(ctx), ShouldBeNil)
	})
}
