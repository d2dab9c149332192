package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/arenawatch/internal/domain/cachegate"
	"github.com/okian/arenawatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2026, 10, 1, 12, 30, 0, 0, time.UTC)

	Convey("Given a fresh database in a temp dir", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "arenawatch.db")
		db, err := Open(ctx, path)
		So(err, ShouldBeNil)
		Reset(func() { _ = db.Close() })
		So(db.Path(), ShouldEqual, path)

		Convey("Snapshots round-trip per category and slot", func() {
			price := 2.5
			live := snapAt(model.CategoryGeneral, asOf, "gpt-4o", "claude")
			live.Records[0].PriceInput = &price
			So(db.SaveSnapshot(ctx, model.SlotLive, live), ShouldBeNil)
			So(db.SaveSnapshot(ctx, model.SlotMonth, snapAt(model.CategoryCoding, asOf.Add(-30*day), "x")), ShouldBeNil)

			sets, err := db.LoadSnapshots(ctx)
			So(err, ShouldBeNil)
			So(sets, ShouldHaveLength, 2)
			So(sets[0].Category, ShouldEqual, model.CategoryCoding)
			So(sets[0].Month.Len(), ShouldEqual, 1)
			So(sets[1].Live.AsOf.Equal(asOf), ShouldBeTrue)
			So(sets[1].Live.Source, ShouldEqual, "arena")
			So(sets[1].Live.Records[1].ModelID, ShouldEqual, "claude")
			So(*sets[1].Live.Records[0].PriceInput, ShouldEqual, 2.5)
			So(sets[1].Live.Records[1].PriceInput, ShouldBeNil)
		})

		Convey("Saving the same slot twice replaces it", func() {
			_ = db.SaveSnapshot(ctx, model.SlotWeek, snapAt(model.CategoryGeneral, asOf, "a"))
			_ = db.SaveSnapshot(ctx, model.SlotWeek, snapAt(model.CategoryGeneral, asOf.Add(time.Hour), "b", "c"))
			sets, _ := db.LoadSnapshots(ctx)
			So(sets, ShouldHaveLength, 1)
			So(sets[0].Week.Len(), ShouldEqual, 2)
		})

		Convey("A memory store hydrates from it", func() {
			_ = db.SaveSnapshot(ctx, model.SlotLive, snapAt(model.CategoryGeneral, asOf, "a"))
			s := NewMemoryStore(WithPersister(db))
			So(s.Hydrate(ctx), ShouldBeNil)
			So(s.Set(ctx, model.CategoryGeneral).Live.Len(), ShouldEqual, 1)
		})

		Convey("Cache entries behave as a cachegate store", func() {
			_, err := db.Get(ctx, "general:new_stars")
			So(errors.Is(err, cachegate.ErrNotFound), ShouldBeTrue)

			So(db.Put(ctx, cachegate.Entry{Key: "general:new_stars", Payload: []byte("v1"), ComputedAt: asOf}), ShouldBeNil)
			So(db.Put(ctx, cachegate.Entry{Key: "general:new_stars", Payload: []byte("v2"), ComputedAt: asOf.Add(time.Minute)}), ShouldBeNil)

			e, err := db.Get(ctx, "general:new_stars")
			So(err, ShouldBeNil)
			So(string(e.Payload), ShouldEqual, "v2")
			So(e.ComputedAt.Equal(asOf.Add(time.Minute)), ShouldBeTrue)

			So(db.Delete(ctx, "general:new_stars"), ShouldBeNil)
			_, err = db.Get(ctx, "general:new_stars")
			So(errors.Is(err, cachegate.ErrNotFound), ShouldBeTrue)
		})

		Convey("The gate reads freshness through it", func() {
			g := cachegate.New(db, cachegate.WithClock(func() time.Time { return asOf.Add(time.Hour) }))
			_ = db.Put(ctx, cachegate.Entry{Key: "k", Payload: []byte("p"), ComputedAt: asOf})
			_, st := g.Lookup(ctx, "k")
			So(st, ShouldEqual, cachegate.Fresh)
		})
	})
}
