package model

import "errors"

// ErrUnknownCategory is returned by ParseCategory.
var ErrUnknownCategory = errors.New("unknown category")

// Tag classifies a DeltaRecord.
type Tag string

// Classification tags.
const (
	TagFastRiser Tag = "fast_riser"
	TagNewStar   Tag = "new_star"
)

// DeltaRecord compares one model's current rank with a baseline.
// Delta is CurrentRank - PreviousRank; negative means the model climbed.
type DeltaRecord struct {
	Key          string   `json:"key"`
	ModelID      string   `json:"model_id"`
	DisplayName  string   `json:"display_name"`
	Category     Category `json:"category"`
	CurrentRank  int      `json:"current_rank"`
	PreviousRank *int     `json:"previous_rank"`
	Delta        *int     `json:"delta"`
	Tags         []Tag    `json:"tags,omitempty"`
}

// HasTag reports whether t was assigned.
func (d DeltaRecord) HasTag(t Tag) bool {
	for _, x := range d.Tags {
		if x == t {
			return true
		}
	}
	return false
}

// Improvement is the number of positions gained, or 0 when no delta exists
// or the model fell.
func (d DeltaRecord) Improvement() int {
	if d.Delta == nil || *d.Delta >= 0 {
		return 0
	}
	return -*d.Delta
}

// WithTag returns a copy of d carrying t once.
func (d DeltaRecord) WithTag(t Tag) DeltaRecord {
	if d.HasTag(t) {
		return d
	}
	d.Tags = append(append([]Tag(nil), d.Tags...), t)
	return d
}
