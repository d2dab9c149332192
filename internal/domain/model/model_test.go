package model

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func ranked(cat Category, keys ...string) *Snapshot {
	s := &Snapshot{Category: cat, AsOf: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	for i, k := range keys {
		s.Records = append(s.Records, ModelRecord{Key: k, Category: cat, Rank: i + 1})
	}
	return s
}

func TestParseCategory(t *testing.T) {
	Convey("Given category input", t, func() {
		Convey("Known names parse regardless of case and spacing", func() {
			c, err := ParseCategory("  Coding ")
			So(err, ShouldBeNil)
			So(c, ShouldEqual, CategoryCoding)
		})

		Convey("Unknown names are rejected with ErrUnknownCategory", func() {
			_, err := ParseCategory("vision")
			So(errors.Is(err, ErrUnknownCategory), ShouldBeTrue)
		})

		Convey("Categories lists general before coding", func() {
			So(Categories(), ShouldResemble, []Category{CategoryGeneral, CategoryCoding})
		})
	})
}

func TestSnapshotValidate(t *testing.T) {
	Convey("Given snapshots", t, func() {
		Convey("A contiguous ranking has no violations", func() {
			So(ranked(CategoryGeneral, "a", "b", "c").Validate(), ShouldBeEmpty)
		})

		Convey("An empty or nil snapshot has no violations", func() {
			var s *Snapshot
			So(s.Validate(), ShouldBeEmpty)
			So(s.Len(), ShouldEqual, 0)
		})

		Convey("Duplicates and gaps are reported, not repaired", func() {
			s := ranked(CategoryGeneral, "a", "b", "c")
			s.Records[2].Rank = 2
			v := s.Validate()
			So(v, ShouldHaveLength, 2)
			So(v[0].Kind, ShouldEqual, ViolationDuplicateRank)
			So(v[0].Key, ShouldEqual, "c")
			So(v[1].Kind, ShouldEqual, ViolationRankGap)
			So(v[1].Rank, ShouldEqual, 3)
			So(s.Records[2].Rank, ShouldEqual, 2)
		})

		Convey("Non-positive ranks are reported", func() {
			s := ranked(CategoryGeneral, "a")
			s.Records[0].Rank = 0
			v := s.Validate()
			So(v[0].Kind, ShouldEqual, ViolationNonPositiveRank)
			So(v[0].String(), ShouldContainSubstring, "non_positive_rank")
		})
	})
}

func TestSnapshotSorted(t *testing.T) {
	Convey("Given an out-of-order snapshot with a duplicate rank", t, func() {
		s := &Snapshot{Records: []ModelRecord{
			{Key: "c", Rank: 3}, {Key: "b1", Rank: 2}, {Key: "a", Rank: 1}, {Key: "b2", Rank: 2},
		}}

		Convey("Sorted orders by rank and keeps input order for ties", func() {
			got := s.Sorted()
			keys := make([]string, len(got))
			for i, r := range got {
				keys[i] = r.Key
			}
			So(keys, ShouldResemble, []string{"a", "b1", "b2", "c"})
			So(s.Records[0].Key, ShouldEqual, "c")
		})

		Convey("Clone does not share the record slice", func() {
			c := s.Clone()
			c.Records[0].Key = "z"
			So(s.Records[0].Key, ShouldEqual, "c")
		})
	})
}

func TestSnapshotSet(t *testing.T) {
	Convey("Given a snapshot set", t, func() {
		week := ranked(CategoryCoding, "a")
		month := ranked(CategoryCoding, "b")

		Convey("Earliest prefers the month slot", func() {
			s, slot := SnapshotSet{Week: week, Month: month}.Earliest()
			So(s, ShouldEqual, month)
			So(slot, ShouldEqual, SlotMonth)
		})

		Convey("Earliest falls back to the week slot", func() {
			s, slot := SnapshotSet{Week: week}.Earliest()
			So(s, ShouldEqual, week)
			So(slot, ShouldEqual, SlotWeek)
		})

		Convey("Earliest is nil without baselines", func() {
			s, _ := SnapshotSet{Live: week}.Earliest()
			So(s, ShouldBeNil)
		})

		Convey("Slot target ages", func() {
			So(SlotLive.TargetAge(), ShouldEqual, time.Duration(0))
			So(SlotWeek.TargetAge(), ShouldEqual, 7*24*time.Hour)
			So(SlotMonth.TargetAge(), ShouldEqual, 30*24*time.Hour)
			So(SnapshotSet{Week: week}.Get(SlotWeek), ShouldEqual, week)
		})
	})
}

func TestRecordHelpers(t *testing.T) {
	Convey("Given records", t, func() {
		now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

		Convey("DaysOnBoard counts whole days and is nil without a creation time", func() {
			created := now.Add(-50 * time.Hour)
			So(*ModelRecord{CreatedAt: &created}.DaysOnBoard(now), ShouldEqual, 2)
			So(ModelRecord{}.DaysOnBoard(now), ShouldBeNil)
		})

		Convey("DeltaRecord helpers", func() {
			d := -3
			rec := DeltaRecord{Key: "a", Delta: &d}
			So(rec.Improvement(), ShouldEqual, 3)
			tagged := rec.WithTag(TagFastRiser).WithTag(TagFastRiser)
			So(tagged.Tags, ShouldResemble, []Tag{TagFastRiser})
			So(rec.HasTag(TagFastRiser), ShouldBeFalse)
			So(DeltaRecord{}.Improvement(), ShouldEqual, 0)
		})

		Convey("AuxRecord reports emptiness", func() {
			So(AuxRecord{RawName: "x"}.Empty(), ShouldBeTrue)
			p := 1.0
			So(AuxRecord{PriceInput: &p}.Empty(), ShouldBeFalse)
		})
	})
}
