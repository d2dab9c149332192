package cachegate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/arenawatch/internal/domain/cachegate"
	"github.com/okian/arenawatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (cachegate.Entry, error) {
	return cachegate.Entry{}, errors.New("disk on fire")
}

func (failingStore) Put(context.Context, cachegate.Entry) error {
	return errors.New("disk on fire")
}

func TestStateAt(t *testing.T) {
	Convey("Given the freshness predicate with a 2h TTL", t, func() {
		now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
		ttl := 2 * time.Hour

		Convey("Entries younger than the TTL are fresh", func() {
			So(cachegate.StateAt(now.Add(-time.Minute), now, ttl), ShouldEqual, cachegate.Fresh)
		})

		Convey("An entry exactly at the TTL is still fresh", func() {
			So(cachegate.StateAt(now.Add(-ttl), now, ttl), ShouldEqual, cachegate.Fresh)
		})

		Convey("Entries older than the TTL are stale", func() {
			So(cachegate.StateAt(now.Add(-ttl-time.Nanosecond), now, ttl), ShouldEqual, cachegate.Stale)
		})

		Convey("A zero timestamp is stale", func() {
			So(cachegate.StateAt(time.Time{}, now, ttl), ShouldEqual, cachegate.Stale)
		})

		Convey("States print in upper case", func() {
			So(cachegate.Fresh.String(), ShouldEqual, "FRESH")
			So(cachegate.Stale.String(), ShouldEqual, "STALE")
		})
	})
}

func TestGate(t *testing.T) {
	ctx := context.Background()

	Convey("Given a gate over a memory store with a controllable clock", t, func() {
		now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		store := cachegate.NewMemoryStore()
		g := cachegate.New(store, cachegate.WithClock(clock))
		key := cachegate.Key(model.CategoryGeneral, cachegate.KindFastRisers)

		Convey("Keys combine category and kind", func() {
			So(key, ShouldEqual, "general:fast_risers")
			So(g.TTL(), ShouldEqual, cachegate.DefaultTTL)
		})

		Convey("A missing key is stale", func() {
			e, st := g.Lookup(ctx, key)
			So(e, ShouldBeNil)
			So(st, ShouldEqual, cachegate.Stale)
		})

		Convey("A recorded entry is fresh until the TTL passes", func() {
			_, err := g.Record(ctx, key, []byte(`{"x":1}`))
			So(err, ShouldBeNil)

			e, st := g.Lookup(ctx, key)
			So(st, ShouldEqual, cachegate.Fresh)
			So(string(e.Payload), ShouldEqual, `{"x":1}`)

			now = now.Add(2*time.Hour + time.Second)
			e, st = g.Lookup(ctx, key)
			So(st, ShouldEqual, cachegate.Stale)
			So(e, ShouldNotBeNil)

			Convey("A fresh write resets it", func() {
				_, err := g.Record(ctx, key, []byte(`{"x":2}`))
				So(err, ShouldBeNil)
				e, st := g.Lookup(ctx, key)
				So(st, ShouldEqual, cachegate.Fresh)
				So(string(e.Payload), ShouldEqual, `{"x":2}`)
				So(store.Len(), ShouldEqual, 1)
			})
		})

		Convey("Checking freshness repeatedly does not change state", func() {
			_, _ = g.Record(ctx, key, []byte("p"))
			for i := 0; i < 3; i++ {
				_, st := g.Lookup(ctx, key)
				So(st, ShouldEqual, cachegate.Fresh)
			}
		})

		Convey("A custom TTL is honoured", func() {
			short := cachegate.New(store, cachegate.WithClock(clock), cachegate.WithTTL(time.Minute))
			_, _ = short.Record(ctx, key, []byte("p"))
			now = now.Add(2 * time.Minute)
			_, st := short.Lookup(ctx, key)
			So(st, ShouldEqual, cachegate.Stale)
		})

		Convey("Deleting an entry makes it stale again", func() {
			_, _ = g.Record(ctx, key, []byte("p"))
			So(store.Delete(ctx, key), ShouldBeNil)
			_, st := g.Lookup(ctx, key)
			So(st, ShouldEqual, cachegate.Stale)
		})
	})

	Convey("Given a failing store", t, func() {
		g := cachegate.New(failingStore{})

		Convey("Reads are treated as stale", func() {
			e, st := g.Lookup(ctx, "general:new_stars")
			So(e, ShouldBeNil)
			So(st, ShouldEqual, cachegate.Stale)
		})

		Convey("Write failures are returned for the caller to log", func() {
			_, err := g.Record(ctx, "general:new_stars", []byte("p"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given no store", t, func() {
		g := cachegate.New(nil)
		_, st := g.Lookup(ctx, "k")
		So(st, ShouldEqual, cachegate.Stale)
		e, err := g.Record(ctx, "k", []byte("p"))
		So(err, ShouldBeNil)
		So(e.ComputedAt.IsZero(), ShouldBeFalse)
	})
}
