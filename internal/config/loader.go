package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix     = "ARENAWATCH_"
	EnvConfigFile = "ARENAWATCH_CONFIG"
	EnvDotEnvFile = "ARENAWATCH_ENV_FILE"
)

const defaultDotEnv = ".env"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. YAML file if ARENAWATCH_CONFIG is set
//  3. .env file (ARENAWATCH_ENV_FILE, or ./.env when present); never
//     overrides variables already set in the process environment
//  4. env (prefix ARENAWATCH_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// ARENAWATCH_CACHE_TTL_MINUTES -> cache_ttl_minutes (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(EnvDotEnvFile)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CacheTTLMinutes <= 0:
		return fmt.Errorf("%w: cache_ttl_minutes must be positive", ErrInvalidConfig)
	case c.FastRiserLimit <= 0:
		return fmt.Errorf("%w: fast_riser_limit must be positive", ErrInvalidConfig)
	case c.FastRiserMinImprovement < 1:
		return fmt.Errorf("%w: fast_riser_min_improvement must be at least 1", ErrInvalidConfig)
	case c.NewStarMaxRank <= 0:
		return fmt.Errorf("%w: new_star_max_rank must be positive", ErrInvalidConfig)
	case c.NewStarBaselineMinRank < c.NewStarMaxRank:
		return fmt.Errorf("%w: new_star_baseline_min_rank must not be below new_star_max_rank", ErrInvalidConfig)
	case c.MaxRankingsLimit <= 0:
		return fmt.Errorf("%w: max_rankings_limit must be positive", ErrInvalidConfig)
	case c.HTTPTimeoutSeconds <= 0:
		return fmt.Errorf("%w: http_timeout_seconds must be positive", ErrInvalidConfig)
	case c.WaybackMaxDriftDays <= 0:
		return fmt.Errorf("%w: wayback_max_drift_days must be positive", ErrInvalidConfig)
	case c.WeekToleranceHours <= 0:
		return fmt.Errorf("%w: week_tolerance_hours must be positive", ErrInvalidConfig)
	case c.RefreshIntervalMinutes < 0:
		return fmt.Errorf("%w: refresh_interval_minutes must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	if c.Persist && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: data_dir must be set when persist is enabled", ErrInvalidConfig)
	}
	return nil
}
