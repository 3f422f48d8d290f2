// Package dedupe tracks games currently held by a worker so that one game is
// never processed twice at the same time.
package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Claim errors.
var (
	ErrInFlight = errors.New("game already in flight")
	ErrCapacity = errors.New("in-flight capacity reached")
)

// Claimer grants exclusive processing rights per game id.
type Claimer interface {
	// Claim marks gameID as in flight. It fails with ErrInFlight when another
	// caller holds the claim and with ErrCapacity when the table is full.
	Claim(ctx context.Context, gameID string) error

	// Release drops the claim so the game may be processed again.
	Release(ctx context.Context, gameID string)

	// Held reports how long gameID has been in flight.
	Held(gameID string) (time.Duration, bool)

	Size() int64
}

type inFlight struct {
	mu      sync.Mutex
	claims  map[string]time.Time
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
	now     func() time.Time
}

// NewInFlight creates an in-memory claim table.
func NewInFlight(opts ...Option) Claimer {
	d := &inFlight{
		maxSize: 50000,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.claims = make(map[string]time.Time)
	return d
}

func (d *inFlight) Claim(_ context.Context, gameID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, held := d.claims[gameID]; held {
		return ErrInFlight
	}
	if d.maxSize > 0 && len(d.claims) >= d.maxSize {
		return ErrCapacity
	}
	d.claims[gameID] = d.now()
	d.size.Add(1)
	return nil
}

func (d *inFlight) Release(_ context.Context, gameID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, held := d.claims[gameID]; held {
		delete(d.claims, gameID)
		d.size.Add(-1)
	}
}

func (d *inFlight) Held(gameID string) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.claims[gameID]
	if !ok {
		return 0, false
	}
	return d.now().Sub(at), true
}

// Size returns the number of games currently in flight.
func (d *inFlight) Size() int64 {
	return d.size.Load()
}
