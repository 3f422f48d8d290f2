// Package queue is the bounded hand-off between game producers and the
// worker pool. One queued item is one whole game.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultRetryInterval = 5 * time.Millisecond
)

// Task is the payload type flowing through the queue.
type Task = model.GameTask

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a game to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// EnqueueWait blocks until the game is queued, the queue closes or ctx ends.
	EnqueueWait(ctx context.Context, t Task) error

	// Dequeue returns a channel that will receive games as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the current number of queued games.
	Len(ctx context.Context) int

	// Close stops accepting games. Queued games are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks         chan Task
	capacity      int
	retryInterval time.Duration
	mu            sync.RWMutex
	closed        bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:      defaultQueueCapacity,
		retryInterval: defaultRetryInterval,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a game to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	if t.Enqueued.IsZero() {
		t.Enqueued = time.Now()
	}

	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// EnqueueWait retries Enqueue until it succeeds.
func (q *InMemoryQueue) EnqueueWait(ctx context.Context, t Task) error { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	ticker := time.NewTicker(q.retryInterval)
	defer ticker.Stop()

	for {
		if q.Enqueue(ctx, t) {
			return nil
		}
		if q.IsClosed() {
			return fmt.Errorf("enqueue game %s: %w", t.GameID, ErrClosed)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("enqueue game %s: %w", t.GameID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Dequeue returns a channel that will receive games as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-q.tasks:
				if !ok {
					return
				}
				select {
				case out <- t:
					metrics.RecordQueueDequeue()
					metrics.RecordQueueProcessingLatency(float64(time.Since(t.Enqueued).Milliseconds()))
					q.updateGauges()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued games.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.updateGauges()
	return len(q.tasks)
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Close stops accepting games.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
