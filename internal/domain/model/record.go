// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Category is a leaderboard board.
type Category string

// Known categories.
const (
	CategoryGeneral Category = "general"
	CategoryCoding  Category = "coding"
)

// Categories lists every known category in display order.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryCoding}
}

// ParseCategory maps user input to a known Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryGeneral, CategoryCoding:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// ModelRecord is one ranked model on a board. Optional signals are nil when
// no source supplied them.
type ModelRecord struct {
	Key         string   `json:"key"`
	ModelID     string   `json:"model_id"`
	DisplayName string   `json:"display_name"`
	Category    Category `json:"category"`
	Rank        int      `json:"rank"`
	Score       float64  `json:"score"`
	Votes       int      `json:"votes,omitempty"`

	PriceInput    *float64   `json:"price_input,omitempty"`
	PriceOutput   *float64   `json:"price_output,omitempty"`
	UsageRank     *int       `json:"usage_rank,omitempty"`
	UsageTokens   *int64     `json:"usage_tokens,omitempty"`
	Speed         *float64   `json:"speed,omitempty"`
	ContextLength *int       `json:"context_length,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// DaysOnBoard is the whole number of days since CreatedAt, or nil when the
// creation time is unknown.
func (r ModelRecord) DaysOnBoard(now time.Time) *int {
	if r.CreatedAt == nil {
		return nil
	}
	d := int(now.Sub(*r.CreatedAt).Hours() / 24)
	if d < 0 {
		d = 0
	}
	return &d
}

// AuxRecord is a partial record from an auxiliary source. Any field may be nil.
type AuxRecord struct {
	RawName       string     `json:"raw_name"`
	PriceInput    *float64   `json:"price_input,omitempty"`
	PriceOutput   *float64   `json:"price_output,omitempty"`
	UsageRank     *int       `json:"usage_rank,omitempty"`
	UsageTokens   *int64     `json:"usage_tokens,omitempty"`
	Speed         *float64   `json:"speed,omitempty"`
	ContextLength *int       `json:"context_length,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Empty reports whether the record carries no signal at all.
func (a AuxRecord) Empty() bool {
	return a.PriceInput == nil && a.PriceOutput == nil && a.UsageRank == nil &&
		a.UsageTokens == nil && a.Speed == nil && a.ContextLength == nil && a.CreatedAt == nil
}

// AuxTable maps raw names from one source to partial records.
type AuxTable struct {
	Source    string               `json:"source"`
	FetchedAt time.Time            `json:"fetched_at"`
	Rows      map[string]AuxRecord `json:"rows"`
}

// Len returns the number of rows.
func (t AuxTable) Len() int { return len(t.Rows) }
