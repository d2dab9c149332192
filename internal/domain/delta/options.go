package delta

import (
	"time"

	"github.com/okian/arenawatch/internal/domain/identity"
	"github.com/okian/arenawatch/pkg/logger"
)

// Defaults for the rise and tier rules.
const (
	DefaultFastRiserLimit         = 10
	DefaultMinImprovement         = 1
	DefaultNewStarMaxRank         = 30
	DefaultNewStarBaselineMinRank = 50
	DefaultWeekTolerance          = 48 * time.Hour
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithFastRiserLimit caps the fast riser list.
func WithFastRiserLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fastRiserLimit = n
		}
	}
}

// WithMinImprovement sets how many positions a model must gain to qualify as
// a fast riser.
func WithMinImprovement(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minImprovement = n
		}
	}
}

// WithNewStarMaxRank sets the current-rank ceiling for new stars.
func WithNewStarMaxRank(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.newStarMaxRank = n
		}
	}
}

// WithNewStarBaselineMinRank sets the baseline rank a new star must have
// been below (or absent).
func WithNewStarBaselineMinRank(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.newStarBaselineMinRank = n
		}
	}
}

// WithBaselineAbsentNewStars controls whether the current top tier is
// reported as new stars when no baseline exists at all.
func WithBaselineAbsentNewStars(enabled bool) Option {
	return func(e *Engine) {
		e.baselineAbsentNewStars = enabled
	}
}

// WithWeekTolerance sets how far the week baseline's age may stray from
// seven days before the result carries a warning.
func WithWeekTolerance(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.weekTolerance = d
		}
	}
}

// WithResolver sets the identity resolver.
func WithResolver(r *identity.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithLogger sets the logger used for contract violation warnings.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now for baseline ages.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
