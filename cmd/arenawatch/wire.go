package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/arenawatch/internal/adapters/fetch"
	"github.com/okian/arenawatch/internal/adapters/repository"
	service "github.com/okian/arenawatch/internal/app"
	"github.com/okian/arenawatch/internal/config"
	"github.com/okian/arenawatch/internal/domain/delta"
	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/pkg/logger"
)

// instance is a wired service plus whatever must be closed with it.
type instance struct {
	cfg     *config.Config
	logger  logger.Logger
	svc     *service.Service
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (r *instance) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// loadConfig loads configuration and installs the process logger on the
// command's stderr.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithFormat(cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	l := logger.Get()

	level := cfg.LogLevel
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	if err := logger.SetLevelString(level); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, l, nil
}

// newResolver builds the identity resolver, loading the alias table when
// one is configured.
func newResolver(cfg *config.Config) (*identity.Resolver, error) {
	if cfg.AliasFile == "" {
		return identity.Default(), nil
	}
	f, err := identity.LoadAliasFile(cfg.AliasFile)
	if err != nil {
		return nil, err
	}
	return identity.New(identity.WithAliasFile(f))
}

// wire assembles the analyzer from configuration: scrapers, archive,
// optional SQLite persistence and the delta rules.
func wire(ctx context.Context, cfg *config.Config, l logger.Logger) (*instance, error) {
	rt := &instance{cfg: cfg, logger: l}

	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(
		fetch.WithTimeout(cfg.HTTPTimeout()),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithLogger(l.Named("fetch")),
	)
	arena := fetch.NewArena(client, cfg.ArenaBaseURL)
	sources := fetch.NewSources(arena, fetch.NewOpenRouter(client, cfg.OpenRouterBaseURL), l.Named("sources"))
	wayback := fetch.NewWayback(client, cfg.WaybackBaseURL, arena,
		fetch.WithRateLimit(cfg.WaybackRequestsPerSecond),
		fetch.WithMaxDrift(time.Duration(cfg.WaybackMaxDriftDays)*24*time.Hour),
	)

	opts := []service.Option{
		service.WithLogger(l.Named("service")),
		service.WithResolver(resolver),
		service.WithFetcher(sources),
		service.WithArchive(wayback),
		service.WithCacheTTL(cfg.CacheTTL()),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithMaxRankingsLimit(cfg.MaxRankingsLimit),
		service.WithEngineOptions(
			delta.WithFastRiserLimit(cfg.FastRiserLimit),
			delta.WithMinImprovement(cfg.FastRiserMinImprovement),
			delta.WithNewStarMaxRank(cfg.NewStarMaxRank),
			delta.WithNewStarBaselineMinRank(cfg.NewStarBaselineMinRank),
			delta.WithBaselineAbsentNewStars(cfg.NewStarsWithoutBaseline),
			delta.WithWeekTolerance(cfg.WeekTolerance()),
		),
	}

	if cfg.Persist {
		db, err := repository.Open(ctx, cfg.DBPath())
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		store := repository.NewMemoryStore(
			repository.WithPersister(db),
			repository.WithLogger(l.Named("store")),
		)
		opts = append(opts, service.WithStore(store), service.WithCacheStore(db))
		l.Info(ctx, "persisting to sqlite", logger.String("path", db.Path()))
	}

	rt.svc = service.New(opts...)
	return rt, nil
}

// open loads configuration, wires the service and starts it.
func open(ctx context.Context, cmd *cobra.Command) (*instance, error) {
	cfg, l, err := loadConfig(ctx, cmd)
	if err != nil {
		return nil, err
	}
	rt, err := wire(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	if err := rt.svc.Start(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		rt.svc.Stop()
		return nil
	})
	return rt, nil
}
