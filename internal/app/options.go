package service

import (
	"time"

	"github.com/okian/courtside/internal/adapters/report"
	"github.com/okian/courtside/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the game queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the number of games in flight at once.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithGameTimeout bounds one processing attempt of a game.
func WithGameTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gameTimeout = d
		}
	}
}

// WithMaxRetries sets how often an aborted game is retried from scratch.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithTolerance sets the Dean Oliver pass band in percent.
func WithTolerance(pct float64) Option {
	return func(s *Service) {
		s.tolerance = pct
	}
}

// WithQuarantine keeps games that fail validation out of the fact tables.
func WithQuarantine(enabled bool) Option {
	return func(s *Service) {
		s.quarantine = enabled
	}
}

// WithDeriveBoxScore validates against totals counted from the events when
// a game carries no box score.
func WithDeriveBoxScore(enabled bool) Option {
	return func(s *Service) {
		s.derive = enabled
	}
}

// WithPublisher sets where validation rows and batch reports are sent.
func WithPublisher(p report.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
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
