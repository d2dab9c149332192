// Package service orchestrates fetching, merging, delta analysis and the
// cache gate behind the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/arenawatch/internal/adapters/fetch"
	"github.com/okian/arenawatch/internal/adapters/repository"
	"github.com/okian/arenawatch/internal/domain/cachegate"
	"github.com/okian/arenawatch/internal/domain/delta"
	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/internal/domain/model"
	"github.com/okian/arenawatch/pkg/logger"
	"github.com/okian/arenawatch/pkg/metrics"
)

// Fetcher supplies live leaderboards and auxiliary tables.
type Fetcher interface {
	FetchLive(ctx context.Context, categories ...model.Category) (*fetch.LiveData, error)
}

// Archive supplies past leaderboards.
type Archive interface {
	FetchAt(ctx context.Context, category model.Category, target time.Time) (*model.Snapshot, error)
}

type hydrater interface {
	Hydrate(ctx context.Context) error
}

type deleter interface {
	Delete(ctx context.Context, key string) error
}

// Service implements the analyzer behind the API and CLI.
type Service struct {
	mu        sync.RWMutex
	refreshMu sync.Mutex

	// Core components
	store    repository.Store
	cache    cachegate.Store
	gate     *cachegate.Gate
	engine   *delta.Engine
	resolver *identity.Resolver
	fetcher  Fetcher
	archive  Archive

	// Configuration
	engineOpts       []delta.Option
	categories       []model.Category
	cacheTTL         time.Duration
	refreshInterval  time.Duration
	maxRankingsLimit int

	// State
	pricing     model.AuxTable
	usage       model.AuxTable
	lastRefresh time.Time
	started     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup

	logger logger.Logger
	now    func() time.Time
}

// New constructs a Service. Without explicit stores it keeps snapshots and
// cache entries in memory.
func New(opts ...Option) *Service {
	s := &Service{
		categories:       model.Categories(),
		cacheTTL:         cachegate.DefaultTTL,
		maxRankingsLimit: 200,
		logger:           logger.Nop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil {
		s.resolver = identity.Default()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithLogger(s.logger.Named("store")), repository.WithClock(s.now))
	}
	if s.cache == nil {
		s.cache = cachegate.NewMemoryStore()
	}
	s.gate = cachegate.New(s.cache,
		cachegate.WithTTL(s.cacheTTL),
		cachegate.WithClock(s.now),
		cachegate.WithLogger(s.logger.Named("cache")),
	)
	engineOpts := append([]delta.Option{
		delta.WithResolver(s.resolver),
		delta.WithLogger(s.logger.Named("delta")),
		delta.WithClock(s.now),
	}, s.engineOpts...)
	s.engine = delta.New(engineOpts...)
	return s
}

// Start hydrates the snapshot store and launches the background refresh
// loop when one is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting analyzer service...")

	if h, ok := s.store.(hydrater); ok {
		if err := h.Hydrate(ctx); err != nil {
			s.logger.Warn(ctx, "could not hydrate snapshot store; starting empty", logger.Error(err))
		}
	}

	s.stopCh = make(chan struct{})
	if s.refreshInterval > 0 && s.fetcher != nil {
		s.wg.Add(1)
		go s.refreshLoop(ctx, s.stopCh)
	}

	s.started = true
	s.logger.Info(ctx, "analyzer service started",
		logger.Int("categories", len(s.categories)),
		logger.Duration("cacheTTL", s.cacheTTL),
		logger.Duration("refreshInterval", s.refreshInterval),
		logger.Int("snapshots", s.store.Count(ctx)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info(context.Background(), "analyzer service stopped")
}

func (s *Service) refreshLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn(ctx, "background refresh failed", logger.Error(err))
			}
		}
	}
}

// Refresh fetches live data, installs the new snapshots and drops cached
// analyses of every category that changed. Auxiliary tables that fail to
// fetch keep their previous contents.
func (s *Service) Refresh(ctx context.Context) error {
	if s.fetcher == nil {
		return ErrNoFetcher
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

// ensureLive refreshes unless category already holds a live snapshot
// within the cache TTL. Concurrent callers wait for one refresh.
func (s *Service) ensureLive(ctx context.Context, category model.Category) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if live := s.store.Set(ctx, category).Live; live != nil && s.gate.State(live.AsOf) == cachegate.Fresh {
		return nil
	}
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) error {
	data, err := s.fetcher.FetchLive(ctx, s.categories...)
	if data == nil {
		return fmt.Errorf("refresh: %w", err)
	}

	s.mu.Lock()
	if data.Pricing.Len() > 0 {
		s.pricing = data.Pricing
	}
	if data.Usage.Len() > 0 {
		s.usage = data.Usage
	}
	s.lastRefresh = data.FetchedAt
	s.mu.Unlock()

	var changed []model.Category
	for _, cat := range s.categories {
		snap, ok := data.Snapshots[cat]
		if !ok {
			continue
		}
		if _, perr := s.store.PutLive(ctx, snap); perr != nil {
			s.logger.Warn(ctx, "live snapshot rejected",
				logger.String("category", string(cat)), logger.Error(perr))
			continue
		}
		changed = append(changed, cat)
	}
	s.invalidate(ctx, changed...)

	s.logger.Info(ctx, "refreshed live data",
		logger.Int("categories", len(changed)),
		logger.Int("pricingRows", data.Pricing.Len()),
		logger.Int("usageRows", data.Usage.Len()),
		logger.Int("warnings", len(data.Warnings)),
	)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// Invalidate drops every cached analysis.
func (s *Service) Invalidate(ctx context.Context) {
	s.invalidate(ctx, s.categories...)
}

func (s *Service) invalidate(ctx context.Context, categories ...model.Category) {
	d, ok := s.cache.(deleter)
	if !ok {
		return
	}
	for _, cat := range categories {
		for _, kind := range cachegate.Kinds() {
			key := cachegate.Key(cat, kind)
			if err := d.Delete(ctx, key); err != nil && !errors.Is(err, cachegate.ErrNotFound) {
				metrics.RecordErrorByComponent("cache", "delete")
				s.logger.Warn(ctx, "cache invalidation failed", logger.String("key", key), logger.Error(err))
			}
		}
	}
}

// Resolver returns the identity resolver in use.
func (s *Service) Resolver() *identity.Resolver { return s.resolver }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	now := s.now()
	stats := map[string]interface{}{
		"started":        s.started,
		"cacheTTL":       s.cacheTTL.String(),
		"snapshots":      s.store.Count(ctx),
		"pricingRows":    s.pricing.Len(),
		"usageRows":      s.usage.Len(),
		"aliases":        s.resolver.AliasCount(),
		"collisions":     len(s.resolver.Collisions()),
		"liveConfigured": s.fetcher != nil,
	}
	if !s.lastRefresh.IsZero() {
		stats["lastRefresh"] = s.lastRefresh.UTC().Format(time.RFC3339)
	}

	perCategory := make(map[string]interface{}, len(s.categories))
	for _, cat := range s.categories {
		set := s.store.Set(ctx, cat)
		slots := make(map[string]interface{}, 3)
		for _, slot := range model.Slots() {
			snap := set.Get(slot)
			if snap == nil {
				continue
			}
			slots[string(slot)] = map[string]interface{}{
				"asOf":     snap.AsOf.UTC().Format(time.RFC3339),
				"ageHours": snap.Age(now).Hours(),
				"records":  snap.Len(),
				"source":   snap.Source,
			}
		}
		perCategory[string(cat)] = slots
	}
	stats["categories"] = perCategory
	return stats
}
