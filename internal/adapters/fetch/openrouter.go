package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/arenawatch/internal/domain/model"
)

// SourceOpenRouter labels tables built from OpenRouter.
const SourceOpenRouter = "openrouter"

// usageChunk matches one escaped chart point on the rankings page:
// \"x\":\"2025-01-06\", ... \"ys\":{\"provider/model\":123,...}
var usageChunk = regexp.MustCompile(`\\"x\\":\\"([\d-]+)\\"[^}]*\\"ys\\":\{([^}]+)\}`)

// OpenRouter fetches pricing and usage tables.
type OpenRouter struct {
	client  *Client
	baseURL string
}

// NewOpenRouter creates an OpenRouter client rooted at baseURL.
func NewOpenRouter(client *Client, baseURL string) *OpenRouter {
	return &OpenRouter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchPricing returns per-million-token prices keyed by model slug.
func (o *OpenRouter) FetchPricing(ctx context.Context) (model.AuxTable, error) {
	body, err := o.client.get(ctx, o.baseURL+"/api/v1/models")
	if err != nil {
		return model.AuxTable{}, err
	}
	return ParsePricing(bytes.NewReader(body), o.client.now())
}

// FetchUsage returns weekly token-usage ranks keyed by model slug.
func (o *OpenRouter) FetchUsage(ctx context.Context) (model.AuxTable, error) {
	body, err := o.client.get(ctx, o.baseURL+"/rankings")
	if err != nil {
		return model.AuxTable{}, err
	}
	return ParseUsage(body, o.client.now()), nil
}

type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		Context int    `json:"context_length"`
		Pricing struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

// ParsePricing decodes the models API. Per-token price strings are scaled
// to per-million and rounded to four decimals; free models are dropped, as
// are entries whose prices do not parse.
func ParsePricing(r io.Reader, fetchedAt time.Time) (model.AuxTable, error) {
	var resp modelsResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return model.AuxTable{}, fmt.Errorf("%w: models: %w", ErrDecode, err)
	}

	t := model.AuxTable{Source: SourceOpenRouter, FetchedAt: fetchedAt, Rows: make(map[string]model.AuxRecord)}
	for _, m := range resp.Data {
		if m.ID == "" {
			continue
		}
		in, err := perMillion(m.Pricing.Prompt)
		if err != nil {
			continue
		}
		out, err := perMillion(m.Pricing.Completion)
		if err != nil {
			continue
		}
		if in <= 0 && out <= 0 {
			continue
		}
		rec := model.AuxRecord{RawName: m.ID, PriceInput: &in, PriceOutput: &out}
		if m.Created > 0 {
			c := time.Unix(m.Created, 0).UTC()
			rec.CreatedAt = &c
		}
		if m.Context > 0 {
			n := m.Context
			rec.ContextLength = &n
		}
		t.Rows[m.ID] = rec
	}
	return t, nil
}

func perMillion(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return math.Round(v*1e6*1e4) / 1e4, nil
}

// ParseUsage extracts the usage chart embedded in the rankings page. Points
// split across chunks are folded per date keeping each model's largest
// value; the date with the highest total volume is used and models are
// ranked by volume, ties by name. "others" and slugs without a provider are
// skipped. An unrecognised page yields an empty table.
func ParseUsage(page []byte, fetchedAt time.Time) model.AuxTable {
	t := model.AuxTable{Source: SourceOpenRouter, FetchedAt: fetchedAt, Rows: make(map[string]model.AuxRecord)}

	byDate := make(map[string]map[string]float64)
	for _, m := range usageChunk.FindAllSubmatch(page, -1) {
		date := string(m[1])
		clean := strings.ReplaceAll(string(m[2]), `\"`, `"`)
		var ys map[string]float64
		if err := json.Unmarshal([]byte("{"+clean+"}"), &ys); err != nil {
			continue
		}
		day, ok := byDate[date]
		if !ok {
			day = make(map[string]float64)
			byDate[date] = day
		}
		for slug, v := range ys {
			if strings.EqualFold(slug, "others") || !strings.Contains(slug, "/") {
				continue
			}
			if v > day[slug] {
				day[slug] = v
			}
		}
	}

	best, bestTotal := "", -1.0
	for date, day := range byDate {
		total := 0.0
		for _, v := range day {
			total += v
		}
		if total > bestTotal || (total == bestTotal && date > best) {
			best, bestTotal = date, total
		}
	}
	if best == "" {
		return t
	}

	day := byDate[best]
	slugs := make([]string, 0, len(day))
	for slug := range day {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool {
		if day[slugs[i]] != day[slugs[j]] {
			return day[slugs[i]] > day[slugs[j]]
		}
		return slugs[i] < slugs[j]
	})
	for i, slug := range slugs {
		rank := i + 1
		tokens := int64(day[slug])
		t.Rows[slug] = model.AuxRecord{RawName: slug, UsageRank: &rank, UsageTokens: &tokens}
	}
	return t
}
