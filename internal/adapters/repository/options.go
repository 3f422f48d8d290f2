package repository

import (
	"time"

	"github.com/okian/courtside/pkg/logger"
)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithBatchSize sets how many rows go into one multi-row INSERT.
func WithBatchSize(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBreaker configures the commit circuit breaker.
func WithBreaker(failureThreshold uint32, timeout time.Duration) Option {
	return func(s *SQLStore) {
		if failureThreshold > 0 {
			s.breakerThreshold = failureThreshold
		}
		if timeout > 0 {
			s.breakerTimeout = timeout
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for status rows.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}
