package model

import (
	"fmt"
	"sort"
	"time"
)

// Slot names which of the three kept snapshots a Snapshot occupies.
type Slot string

// Snapshot slots.
const (
	SlotLive  Slot = "live"
	SlotWeek  Slot = "week"
	SlotMonth Slot = "month"
)

// Slots lists every slot from newest to oldest.
func Slots() []Slot { return []Slot{SlotLive, SlotWeek, SlotMonth} }

// TargetAge is how old the snapshot in this slot is meant to be.
func (s Slot) TargetAge() time.Duration {
	switch s {
	case SlotWeek:
		return 7 * 24 * time.Hour
	case SlotMonth:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Snapshot is a timestamped ranked list for one category. Treat it as
// immutable once stored; use Clone before modifying.
type Snapshot struct {
	Category Category      `json:"category"`
	AsOf     time.Time     `json:"as_of"`
	Source   string        `json:"source,omitempty"`
	Records  []ModelRecord `json:"records"`
}

// Len returns the number of records; nil snapshots are empty.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Age is now minus AsOf.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.AsOf)
}

// Clone returns a deep copy of the record slice. Pointer fields are shared;
// they are never mutated in place.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Records = append([]ModelRecord(nil), s.Records...)
	return &c
}

// Sorted returns the records stably ordered by the rank values given.
func (s *Snapshot) Sorted() []ModelRecord {
	if s == nil {
		return nil
	}
	out := append([]ModelRecord(nil), s.Records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// ViolationKind classifies a ranking contract violation.
type ViolationKind string

// Violation kinds.
const (
	ViolationNonPositiveRank ViolationKind = "non_positive_rank"
	ViolationDuplicateRank   ViolationKind = "duplicate_rank"
	ViolationRankGap         ViolationKind = "rank_gap"

	// Reported by consumers that resolve identities; Validate does not.
	ViolationDuplicateIdentity ViolationKind = "duplicate_identity"
)

// Violation describes one place where ranks are not a permutation of 1..N.
type Violation struct {
	Kind ViolationKind
	Rank int
	Key  string
}

func (v Violation) String() string {
	if v.Key == "" {
		return fmt.Sprintf("%s at rank %d", v.Kind, v.Rank)
	}
	return fmt.Sprintf("%s at rank %d (%s)", v.Kind, v.Rank, v.Key)
}

// Validate reports every deviation from a contiguous 1..N ranking. It never
// repairs anything.
func (s *Snapshot) Validate() []Violation {
	if s.Len() == 0 {
		return nil
	}
	var out []Violation
	seen := make(map[int]bool, len(s.Records))
	for _, r := range s.Records {
		if r.Rank < 1 {
			out = append(out, Violation{Kind: ViolationNonPositiveRank, Rank: r.Rank, Key: r.Key})
			continue
		}
		if seen[r.Rank] {
			out = append(out, Violation{Kind: ViolationDuplicateRank, Rank: r.Rank, Key: r.Key})
			continue
		}
		seen[r.Rank] = true
	}
	for rank := 1; rank <= len(s.Records); rank++ {
		if !seen[rank] {
			out = append(out, Violation{Kind: ViolationRankGap, Rank: rank})
		}
	}
	return out
}

// SnapshotSet holds the live, week-old and month-old snapshots of one
// category. Any of them may be nil.
type SnapshotSet struct {
	Category Category
	Live     *Snapshot
	Week     *Snapshot
	Month    *Snapshot
}

// Get returns the snapshot in slot.
func (s SnapshotSet) Get(slot Slot) *Snapshot {
	switch slot {
	case SlotLive:
		return s.Live
	case SlotWeek:
		return s.Week
	case SlotMonth:
		return s.Month
	}
	return nil
}

// Earliest returns the oldest snapshot held other than live, or nil.
func (s SnapshotSet) Earliest() (*Snapshot, Slot) {
	switch {
	case s.Month != nil:
		return s.Month, SlotMonth
	case s.Week != nil:
		return s.Week, SlotWeek
	}
	return nil, ""
}
