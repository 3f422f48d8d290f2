// Package worker runs whole-game processing tasks pulled off the queue.
// A game is handled start to finish by one worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/courtside/internal/adapters/mq/queue"
	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultGameTimeout  = 30 * time.Second
	defaultMaxRetries   = 2
	poolShutdownTimeout = 30 * time.Second
)

// active counts games in hand across all workers of the process.
var active atomic.Int64 //nolint:gochecknoglobals // backs the worker_active_count gauge

// Task is what workers read off the queue.
type Task = queue.Task

// Processor runs one attempt of the per-game pipeline.
type Processor interface {
	Process(ctx context.Context, t Task) model.GameOutcome
}

// Recorder receives the final outcome of every dequeued game.
type Recorder interface {
	Record(ctx context.Context, o model.GameOutcome)
}

// Queue defines how workers receive games.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes games until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the game in hand.
	Shutdown(ctx context.Context) error
}

// GameWorker implements Worker.
type GameWorker struct {
	queue      Queue
	processor  Processor
	recorder   Recorder
	claims     dedupe.Claimer
	name       string
	timeout    time.Duration
	maxRetries int
	retryable  func(error) bool

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewGameWorker creates a new worker with configuration options.
func NewGameWorker(q Queue, p Processor, r Recorder, opts ...Option) *GameWorker {
	w := &GameWorker{
		queue:      q,
		processor:  p,
		recorder:   r,
		name:       "worker",
		timeout:    defaultGameTimeout,
		maxRetries: defaultMaxRetries,
		retryable:  Aborted,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.claims == nil {
		w.claims = dedupe.NewInFlight()
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Aborted reports whether an attempt was cut short rather than failed on its data.
func Aborted(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Run starts the worker loop.
func (w *GameWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			tctx := logger.ContextWith(ctx, logger.String("run_id", t.BatchID))
			w.recorder.Record(tctx, w.handle(tctx, t))
		}
	}
}

// Shutdown stops the worker.
func (w *GameWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// handle claims the game and runs attempts until one is not retryable.
func (w *GameWorker) handle(ctx context.Context, t Task) model.GameOutcome { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(active.Add(1)))
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		metrics.UpdateWorkerActiveCount(int(active.Add(-1)))
	}()

	if err := w.claims.Claim(ctx, t.GameID); err != nil {
		w.logger.Warn(ctx, "game already in flight", logger.String("game_id", t.GameID), logger.Error(err))
		return model.GameOutcome{
			BatchID: t.BatchID,
			GameID:  t.GameID,
			Status:  model.StatusSkipped,
			Err:     err,
		}
	}
	defer w.claims.Release(ctx, t.GameID)

	var out model.GameOutcome
	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, w.timeout)
		out = w.processor.Process(actx, t)
		cancel()

		out.Attempts = attempt
		if out.Err == nil || !w.retryable(out.Err) || attempt > w.maxRetries || ctx.Err() != nil {
			break
		}

		metrics.RecordWorkerRetry()
		w.logger.Warn(ctx, "retrying game from scratch",
			logger.String("game_id", t.GameID),
			logger.Int("attempt", attempt),
			logger.Error(out.Err))
	}

	if out.Err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", string(out.Status))
	}
	out.BatchID = t.BatchID
	out.GameID = t.GameID
	out.Duration = time.Since(start)
	return out
}

// Pool manages multiple workers sharing one in-flight table.
type Pool struct {
	workers []*GameWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, p Processor, r Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*GameWorker, workerCount),
		queue:   q,
		logger:  poolLogger(opts),
	}

	shared := append([]Option{WithClaimer(dedupe.NewInFlight())}, opts...)
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewGameWorker(q, p, r,
			append(shared, WithName("worker-"+strconv.Itoa(i)))...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// poolLogger takes the logger passed in opts, if any.
func poolLogger(opts []Option) logger.Logger {
	probe := &GameWorker{}
	for _, opt := range opts {
		opt(probe)
	}
	if probe.logger == nil {
		return logger.Get().Named("worker-pool")
	}
	return probe.logger.Named("worker-pool")
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	return nil
}
