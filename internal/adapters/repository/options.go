package repository

import (
	"time"

	"github.com/okian/arenawatch/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithPersister writes every accepted snapshot through to p.
func WithPersister(p Persister) Option {
	return func(s *MemoryStore) {
		s.persister = p
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, used for age metrics.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
