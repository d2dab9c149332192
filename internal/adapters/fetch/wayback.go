package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/arenawatch/internal/domain/model"
)

// SourceWayback labels snapshots recovered from the web archive.
const SourceWayback = "wayback"

const waybackLayout = "20060102150405"

// Wayback recovers past leaderboards from the Internet Archive.
type Wayback struct {
	client   *Client
	baseURL  string
	arena    *Arena
	limiter  *rate.Limiter
	maxDrift time.Duration
}

// WaybackOption applies a configuration option to Wayback.
type WaybackOption func(*Wayback)

// WithRateLimit bounds requests per second against the archive.
func WithRateLimit(perSecond float64) WaybackOption {
	return func(w *Wayback) {
		if perSecond > 0 {
			w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMaxDrift sets how far from the target a capture may be.
func WithMaxDrift(d time.Duration) WaybackOption {
	return func(w *Wayback) {
		if d > 0 {
			w.maxDrift = d
		}
	}
}

// NewWayback creates an archive client. arena supplies the page URLs being
// looked up and the parser for the captures.
func NewWayback(client *Client, baseURL string, arena *Arena, opts ...WaybackOption) *Wayback {
	w := &Wayback{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		arena:    arena,
		limiter:  rate.NewLimiter(rate.Limit(0.5), 1),
		maxDrift: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FetchAt returns the leaderboard of category as archived closest to
// target. The snapshot's AsOf is the capture time, not target.
func (w *Wayback) FetchAt(ctx context.Context, category model.Category, target time.Time) (*model.Snapshot, error) {
	page, err := w.arena.PageURL(category)
	if err != nil {
		return nil, err
	}
	capturedAt, err := w.closest(ctx, page, target)
	if err != nil {
		return nil, err
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	raw := fmt.Sprintf("%s/web/%sid_/%s", w.baseURL, capturedAt.Format(waybackLayout), page)
	body, err := w.client.get(ctx, raw)
	if err != nil {
		return nil, err
	}
	snap, err := ParseLeaderboard(bytes.NewReader(body), category, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parse capture %s: %w", raw, err)
	}
	snap.Source = SourceWayback
	return snap, nil
}

// closest asks the CDX index for successful captures of page within the
// drift window and returns the one nearest to target.
func (w *Wayback) closest(ctx context.Context, page string, target time.Time) (time.Time, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return time.Time{}, err
	}

	q := url.Values{}
	q.Set("url", strings.TrimPrefix(strings.TrimPrefix(page, "https://"), "http://"))
	q.Set("output", "json")
	q.Set("from", target.Add(-w.maxDrift).UTC().Format(waybackLayout))
	q.Set("to", target.Add(w.maxDrift).UTC().Format(waybackLayout))
	q.Set("fl", "timestamp")
	q.Set("filter", "statuscode:200")
	q.Set("limit", "50")

	body, err := w.client.get(ctx, w.baseURL+"/cdx/search/cdx?"+q.Encode())
	if err != nil {
		return time.Time{}, err
	}
	return pickCapture(body, target, w.maxDrift)
}

// pickCapture reads a CDX JSON response (a header row followed by
// [timestamp] rows) and returns the capture nearest to target within
// maxDrift.
func pickCapture(body []byte, target time.Time, maxDrift time.Duration) (time.Time, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return time.Time{}, ErrNoArchive
	}
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return time.Time{}, fmt.Errorf("%w: cdx: %w", ErrDecode, err)
	}

	var (
		best     time.Time
		bestDist time.Duration = -1
	)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		ts, err := time.Parse(waybackLayout, row[0])
		if err != nil {
			continue
		}
		d := ts.Sub(target)
		if d < 0 {
			d = -d
		}
		if d > maxDrift {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = ts, d
		}
	}
	if bestDist < 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNoArchive, target.Format(time.DateOnly))
	}
	return best, nil
}
