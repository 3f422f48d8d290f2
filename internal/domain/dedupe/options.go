package dedupe

import "time"

// Option applies a configuration option to the in-flight table.
type Option func(*inFlight)

// WithMaxSize caps the number of concurrent claims.
// If maxSize <= 0 the table is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inFlight) {
		d.maxSize = maxSize
	}
}

// WithClock overrides the time source used for Held.
func WithClock(now func() time.Time) Option {
	return func(d *inFlight) {
		if now != nil {
			d.now = now
		}
	}
}
