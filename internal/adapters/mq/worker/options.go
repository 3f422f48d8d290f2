package worker

import (
	"time"

	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/pkg/logger"
)

// Option applies a configuration option to a GameWorker.
type Option func(*GameWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *GameWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *GameWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithGameTimeout bounds a single processing attempt.
func WithGameTimeout(d time.Duration) Option {
	return func(w *GameWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithMaxRetries sets how many times an aborted game is retried from scratch.
func WithMaxRetries(n int) Option {
	return func(w *GameWorker) {
		if n >= 0 {
			w.maxRetries = n
		}
	}
}

// WithClaimer shares an in-flight table across workers.
func WithClaimer(c dedupe.Claimer) Option {
	return func(w *GameWorker) {
		if c != nil {
			w.claims = c
		}
	}
}

// WithRetryable overrides which attempt errors are retried.
func WithRetryable(fn func(error) bool) Option {
	return func(w *GameWorker) {
		if fn != nil {
			w.retryable = fn
		}
	}
}
