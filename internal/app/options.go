package service

import (
	"time"

	"github.com/okian/arenawatch/internal/adapters/repository"
	"github.com/okian/arenawatch/internal/domain/cachegate"
	"github.com/okian/arenawatch/internal/domain/delta"
	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the snapshot store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCacheStore sets where cached analysis payloads are kept.
func WithCacheStore(store cachegate.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.cache = store
		}
	}
}

// WithFetcher sets the live data source.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithArchive sets the source of past leaderboards used by Backfill.
func WithArchive(a Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithResolver sets the identity resolver shared by merging and deltas.
func WithResolver(r *identity.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithEngineOptions passes options through to the delta engine.
func WithEngineOptions(opts ...delta.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithCacheTTL sets the freshness window for cached results and for the
// live snapshot.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRefreshInterval enables a background refresh loop. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithCategories restricts the categories fetched and analysed.
func WithCategories(categories ...model.Category) Option {
	return func(s *Service) {
		if len(categories) > 0 {
			s.categories = categories
		}
	}
}

// WithMaxRankingsLimit caps the rankings limit accepted by Rankings.
func WithMaxRankingsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRankingsLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
