// Package types contains the JSON shapes exposed by the API and cached by
// the analyzer.
package types

import "time"

// BaselineInfo tells the reader which baseline a signal was computed
// against and how old it was.
type BaselineInfo struct {
	Requested   string     `json:"requested"`
	Used        string     `json:"used,omitempty"`
	Present     bool       `json:"present"`
	Substituted bool       `json:"substituted"`
	AsOf        *time.Time `json:"as_of,omitempty"`
	AgeHours    float64    `json:"age_hours"`
}

// AgeDays is AgeHours expressed in days.
func (b BaselineInfo) AgeDays() float64 { return b.AgeHours / 24 }

// Delta is one model's movement against a baseline.
type Delta struct {
	Key          string   `json:"key"`
	ModelID      string   `json:"model_id"`
	DisplayName  string   `json:"display_name"`
	CurrentRank  int      `json:"current_rank"`
	PreviousRank *int     `json:"previous_rank"`
	Delta        *int     `json:"delta"`
	Score        float64  `json:"score"`
	PriceInput   *float64 `json:"price_input,omitempty"`
	PriceOutput  *float64 `json:"price_output,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// RankedModel is one enriched live record with its week-over-week change.
type RankedModel struct {
	Key           string   `json:"key"`
	ModelID       string   `json:"model_id"`
	DisplayName   string   `json:"display_name"`
	Rank          int      `json:"rank"`
	Score         float64  `json:"score"`
	Votes         int      `json:"votes,omitempty"`
	PreviousRank  *int     `json:"previous_rank"`
	Delta         *int     `json:"delta"`
	PriceInput    *float64 `json:"price_input,omitempty"`
	PriceOutput   *float64 `json:"price_output,omitempty"`
	UsageRank     *int     `json:"usage_rank,omitempty"`
	UsageTokens   *int64   `json:"usage_tokens,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
	ContextLength *int     `json:"context_length,omitempty"`
	DaysOnBoard   *int     `json:"days_on_board,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// Payload is what the analyzer caches per "<category>:<kind>" key.
type Payload[T any] struct {
	RunID       string       `json:"run_id"`
	Category    string       `json:"category"`
	GeneratedAt time.Time    `json:"generated_at"`
	LiveAsOf    *time.Time   `json:"live_as_of,omitempty"`
	Baseline    BaselineInfo `json:"baseline"`
	Degraded    bool         `json:"degraded"`
	Warnings    []string     `json:"warnings,omitempty"`
	Items       []T          `json:"items"`
}

// Baselines groups the two comparison windows.
type Baselines struct {
	Week  BaselineInfo `json:"week"`
	Month BaselineInfo `json:"month"`
}

// Analysis is the full per-category result.
type Analysis struct {
	RunID       string        `json:"run_id"`
	Category    string        `json:"category"`
	GeneratedAt time.Time     `json:"generated_at"`
	LiveAsOf    *time.Time    `json:"live_as_of,omitempty"`
	Cached      bool          `json:"cached"`
	Degraded    bool          `json:"degraded"`
	Warnings    []string      `json:"warnings,omitempty"`
	Baselines   Baselines     `json:"baselines"`
	FastRisers  []Delta       `json:"fast_risers"`
	NewStars    []Delta       `json:"new_stars"`
	Rankings    []RankedModel `json:"full_rankings"`
}

// Top returns at most n rankings.
func (a *Analysis) Top(n int) []RankedModel {
	if n < 0 || n >= len(a.Rankings) {
		return a.Rankings
	}
	return a.Rankings[:n]
}
