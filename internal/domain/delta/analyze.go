package delta

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
)

// Window describes the baseline actually used for one comparison.
type Window struct {
	// Requested is the slot the rule asks for.
	Requested model.Slot `json:"requested"`
	// Used is the slot compared against; empty when none was available.
	Used model.Slot `json:"used,omitempty"`
	// Present is false when no baseline could be used.
	Present bool `json:"present"`
	// Substituted is true when Used differs from Requested.
	Substituted bool      `json:"substituted"`
	AsOf        time.Time `json:"as_of,omitempty"`
	// Age is the baseline age relative to the live snapshot.
	Age time.Duration `json:"age"`
}

// Result is one category's analysis.
type Result struct {
	Category   model.Category
	LiveAsOf   time.Time
	Rankings   []model.DeltaRecord
	FastRisers []model.DeltaRecord
	NewStars   []model.DeltaRecord
	Week       Window
	Month      Window
	Degraded   bool
	Warnings   []string
	Violations []model.Violation
}

// Analyze compares live with the week-old snapshot for fast risers and with
// the month-old snapshot, or the earliest one held, for new stars.
//
// Rankings lists every live model with its change against the week-old
// baseline, tagged with both classifications.
func (e *Engine) Analyze(ctx context.Context, set model.SnapshotSet) Result {
	res := Result{
		Category: set.Category,
		Week:     Window{Requested: model.SlotWeek},
		Month:    Window{Requested: model.SlotMonth},
	}
	live := set.Live
	ref := e.now()
	if live != nil {
		res.LiveAsOf = live.AsOf
		ref = live.AsOf
	} else {
		res.Degraded = true
		res.Warnings = append(res.Warnings, "no live snapshot")
	}

	weekCmp := e.ComputeDeltas(ctx, live, set.Week)
	res.Violations = weekCmp.Violations
	if set.Week != nil {
		res.Week = window(model.SlotWeek, model.SlotWeek, set.Week, ref)
		if skew := res.Week.Age - model.SlotWeek.TargetAge(); skew > e.weekTolerance || skew < -e.weekTolerance {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"week-old baseline is %s old; fast risers cover a different window",
				res.Week.Age.Round(time.Hour)))
			e.logger.Warn(ctx, "fast riser baseline off target age",
				logger.String("category", string(set.Category)),
				logger.Duration("age", res.Week.Age))
		}
	} else {
		res.Degraded = true
		res.Warnings = append(res.Warnings, "no week-old baseline; fast risers unavailable")
	}
	res.FastRisers = e.FastRisers(weekCmp)

	monthSnap, monthSlot := set.Month, model.SlotMonth
	if monthSnap == nil {
		monthSnap, monthSlot = set.Earliest()
	}
	monthCmp := weekCmp
	if monthSnap != set.Week {
		monthCmp = e.ComputeDeltas(ctx, live, monthSnap)
		res.Violations = mergeViolations(res.Violations, monthCmp.Violations)
	}
	if monthSnap != nil {
		res.Month = window(model.SlotMonth, monthSlot, monthSnap, ref)
		if res.Month.Substituted {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"no month-old baseline; new stars compared with the %s snapshot (%s old)",
				monthSlot, res.Month.Age.Round(time.Hour)))
			e.logger.Warn(ctx, "new star baseline substituted",
				logger.String("category", string(set.Category)),
				logger.String("used", string(monthSlot)),
				logger.Duration("age", res.Month.Age))
		}
	} else {
		res.Degraded = true
		res.Warnings = append(res.Warnings, "no month-old baseline; every top-tier model counts as new")
	}
	res.NewStars = e.NewStars(monthCmp)
	if live.Len() == 0 {
		res.Degraded = true
	}

	res.Rankings = tagRankings(weekCmp.Deltas, res.FastRisers, res.NewStars)
	return res
}

func window(requested, used model.Slot, s *model.Snapshot, ref time.Time) Window {
	age := ref.Sub(s.AsOf)
	if age < 0 {
		age = 0
	}
	return Window{
		Requested:   requested,
		Used:        used,
		Present:     true,
		Substituted: requested != used,
		AsOf:        s.AsOf,
		Age:         age,
	}
}

// row identifies one live record; two rows may share a canonical key.
type row struct {
	key     string
	modelID string
	rank    int
}

func rowOf(d model.DeltaRecord) row {
	return row{key: d.Key, modelID: d.ModelID, rank: d.CurrentRank}
}

func tagRankings(all, risers, stars []model.DeltaRecord) []model.DeltaRecord {
	riser := make(map[row]bool, len(risers))
	for _, d := range risers {
		riser[rowOf(d)] = true
	}
	star := make(map[row]bool, len(stars))
	for _, d := range stars {
		star[rowOf(d)] = true
	}
	out := make([]model.DeltaRecord, len(all))
	for i, d := range all {
		if riser[rowOf(d)] {
			d = d.WithTag(model.TagFastRiser)
		}
		if star[rowOf(d)] {
			d = d.WithTag(model.TagNewStar)
		}
		out[i] = d
	}
	return out
}

func mergeViolations(a, b []model.Violation) []model.Violation {
	seen := make(map[model.Violation]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			a = append(a, v)
		}
	}
	return a
}
