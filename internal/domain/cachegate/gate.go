// Package cachegate decides whether cached derived output can be served.
//
// The gate holds no payloads itself. It reasons only about the computed_at
// timestamp of entries kept in a Store handed to it.
package cachegate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
)

// DefaultTTL is the age after which an entry is stale.
const DefaultTTL = 2 * time.Hour

// ErrNotFound is returned by stores for unknown keys.
var ErrNotFound = errors.New("cache entry not found")

// State is the freshness of an entry.
type State int

// Freshness states.
const (
	Stale State = iota
	Fresh
)

func (s State) String() string {
	if s == Fresh {
		return "FRESH"
	}
	return "STALE"
}

// Kind names a derived computation.
type Kind string

// Computation kinds.
const (
	KindFastRisers Kind = "fast_risers"
	KindNewStars   Kind = "new_stars"
	KindRankings   Kind = "rankings"
)

// Kinds lists every computation kind cached per category.
func Kinds() []Kind { return []Kind{KindFastRisers, KindNewStars, KindRankings} }

// Key builds the cache key "<category>:<kind>".
func Key(category model.Category, kind Kind) string {
	return string(category) + ":" + string(kind)
}

// Entry is a cached payload and when it was computed.
type Entry struct {
	Key        string
	Payload    []byte
	ComputedAt time.Time
}

// Store persists entries. Put replaces the whole entry.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, e Entry) error
}

// Gate applies the freshness rule to entries of a Store.
type Gate struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gate over store.
func New(store Store, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL returns the configured freshness window.
func (g *Gate) TTL() time.Duration { return g.ttl }

// StateAt is the pure freshness predicate: an entry is stale once
// now - computedAt exceeds ttl. A zero computedAt is always stale.
func StateAt(computedAt, now time.Time, ttl time.Duration) State {
	if computedAt.IsZero() || now.Sub(computedAt) > ttl {
		return Stale
	}
	return Fresh
}

// State evaluates the predicate against the gate's clock and TTL.
func (g *Gate) State(computedAt time.Time) State {
	return StateAt(computedAt, g.now(), g.ttl)
}

// Lookup reads key and reports its state. A missing entry or a failing
// store is reported as Stale with a nil entry; the error is logged, never
// returned, so callers simply recompute.
func (g *Gate) Lookup(ctx context.Context, key string) (*Entry, State) {
	if g.store == nil {
		return nil, Stale
	}
	e, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.logger.Warn(ctx, "cache read failed; treating as stale",
				logger.String("key", key), logger.Error(err))
		}
		return nil, Stale
	}
	if g.State(e.ComputedAt) == Stale {
		return &e, Stale
	}
	return &e, Fresh
}

// Record stores payload under key with computed_at = now and returns the
// written entry. Concurrent writers replace each other; the last one wins.
func (g *Gate) Record(ctx context.Context, key string, payload []byte) (Entry, error) {
	e := Entry{Key: key, Payload: payload, ComputedAt: g.now()}
	if g.store == nil {
		return e, nil
	}
	if err := g.store.Put(ctx, e); err != nil {
		g.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
		return e, fmt.Errorf("cache put %s: %w", key, err)
	}
	return e, nil
}
