// Package config defines process configuration and its layered loading.
package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DataDir holds the SQLite database.
	DataDir string `koanf:"data_dir"`

	// Persist enables the SQLite snapshot and cache store.
	Persist bool `koanf:"persist"`

	// CacheTTLMinutes is the age after which cached analysis is stale.
	CacheTTLMinutes int `koanf:"cache_ttl_minutes"`

	// FastRiserLimit caps the fast riser list.
	FastRiserLimit int `koanf:"fast_riser_limit"`

	// FastRiserMinImprovement is the minimum number of positions gained.
	FastRiserMinImprovement int `koanf:"fast_riser_min_improvement"`

	// NewStarMaxRank and NewStarBaselineMinRank define the new star tier move.
	NewStarMaxRank         int `koanf:"new_star_max_rank"`
	NewStarBaselineMinRank int `koanf:"new_star_baseline_min_rank"`

	// NewStarsWithoutBaseline keeps reporting the current top tier as new
	// when no baseline exists. Such results are flagged degraded.
	NewStarsWithoutBaseline bool `koanf:"new_stars_without_baseline"`

	// WeekToleranceHours is how far the week baseline may stray from seven
	// days before analyses warn about it.
	WeekToleranceHours int `koanf:"week_tolerance_hours"`

	// AliasFile points at an optional YAML alias table.
	AliasFile string `koanf:"alias_file"`

	// Upstream endpoints.
	ArenaBaseURL      string `koanf:"arena_base_url"`
	OpenRouterBaseURL string `koanf:"openrouter_base_url"`
	WaybackBaseURL    string `koanf:"wayback_base_url"`

	// HTTPTimeoutSeconds bounds each outbound request.
	HTTPTimeoutSeconds int `koanf:"http_timeout_seconds"`

	// UserAgent is sent on outbound requests.
	UserAgent string `koanf:"user_agent"`

	// WaybackRequestsPerSecond throttles archive lookups.
	WaybackRequestsPerSecond float64 `koanf:"wayback_requests_per_second"`

	// WaybackMaxDriftDays is the widest accepted distance from a target date.
	WaybackMaxDriftDays int `koanf:"wayback_max_drift_days"`

	// MaxRankingsLimit caps GET /rankings/{category}?limit.
	MaxRankingsLimit int `koanf:"max_rankings_limit"`

	// RefreshIntervalMinutes enables a background refresh when positive.
	RefreshIntervalMinutes int `koanf:"refresh_interval_minutes"`
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		DataDir:                  filepath.Join(xdg.DataHome, "arenawatch"),
		Persist:                  true,
		CacheTTLMinutes:          120,
		FastRiserLimit:           10,
		FastRiserMinImprovement:  1,
		NewStarMaxRank:           30,
		NewStarBaselineMinRank:   50,
		NewStarsWithoutBaseline:  true,
		WeekToleranceHours:       48,
		ArenaBaseURL:             "https://arena.ai",
		OpenRouterBaseURL:        "https://openrouter.ai",
		WaybackBaseURL:           "https://web.archive.org",
		HTTPTimeoutSeconds:       20,
		UserAgent:                defaultUserAgent,
		WaybackRequestsPerSecond: 0.5,
		WaybackMaxDriftDays:      7,
		MaxRankingsLimit:         200,
	}
}

// CacheTTL returns CacheTTLMinutes as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// WeekTolerance returns WeekToleranceHours as a duration.
func (c *Config) WeekTolerance() time.Duration {
	return time.Duration(c.WeekToleranceHours) * time.Hour
}

// HTTPTimeout returns HTTPTimeoutSeconds as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// RefreshInterval returns RefreshIntervalMinutes as a duration; zero disables.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// DBPath is the SQLite file inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "arenawatch.db")
}
