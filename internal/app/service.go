// Package service runs games through the reconstruction pipeline on a
// worker pool and exposes the aggregation views to the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/courtside/internal/adapters/mq/queue"
	"github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/adapters/report"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/oliver"
	"github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize   = 1024
	defaultDedupeSize  = 50000
	defaultGameTimeout = 30 * time.Second
	defaultMaxRetries  = 2
	defaultTolerance   = 5.0
)

// Service owns the queue and worker pool and routes game outcomes back to
// the batch that submitted them.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	publisher report.Publisher
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	claims    dedupe.Claimer
	cancel    context.CancelFunc

	workerCount int
	queueSize   int
	dedupeSize  int
	gameTimeout time.Duration
	maxRetries  int
	tolerance   float64
	quarantine  bool
	derive      bool

	bmu     sync.Mutex
	batches map[string]chan model.GameOutcome
	totals  model.BatchReport

	started bool
	logger  logger.Logger
}

// New constructs a Service over store with default configuration.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		gameTimeout: defaultGameTimeout,
		maxRetries:  defaultMaxRetries,
		tolerance:   defaultTolerance,
		derive:      true,
		batches:     make(map[string]chan model.GameOutcome),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the validator and starts the worker pool. Workers outlive
// ctx; call Stop to end them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.publisher == nil {
		s.publisher = report.NewLogPublisher(s.logger.Named("report"))
	}

	v, err := oliver.New(oliver.WithTolerance(s.tolerance), oliver.WithQuarantine(s.quarantine))
	if err != nil {
		return fmt.Errorf("building validator: %w", err)
	}

	s.logger.Info(ctx, "starting processing service...")

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.claims = dedupe.NewInFlight(dedupe.WithMaxSize(s.dedupeSize))
	pipeline := NewPipeline(s.store, v, s.publisher, s.derive, s.logger.Named("pipeline"))

	s.pool = worker.NewPool(s.workerCount, s.queue, pipeline, s,
		worker.WithClaimer(s.claims),
		worker.WithGameTimeout(s.gameTimeout),
		worker.WithMaxRetries(s.maxRetries),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "processing service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("gameTimeout", s.gameTimeout),
		logger.Int("maxRetries", s.maxRetries),
		logger.Float64("tolerancePct", s.tolerance),
		logger.Bool("quarantine", s.quarantine),
		logger.Bool("deriveBoxScore", s.derive),
	)
	return nil
}

// Stop drains the queue and stops the workers. The store stays open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping processing service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()

	s.started = false
	if err != nil {
		return fmt.Errorf("stopping worker pool: %w", err)
	}
	s.logger.Info(ctx, "processing service stopped")
	return nil
}

// ProcessBatch fans games out to the pool and waits for every outcome.
// Failures of one game never affect another; the report counts each game
// in its own bucket. When ctx ends first the partial report is returned
// with ErrBatchCancelled.
func (s *Service) ProcessBatch(ctx context.Context, games []model.RawGame) (model.BatchReport, error) {
	q, err := s.runningQueue()
	if err != nil {
		return model.BatchReport{}, err
	}

	rep := model.BatchReport{RunID: uuid.NewString(), Started: time.Now()}
	results := make(chan model.GameOutcome, len(games))

	s.bmu.Lock()
	s.batches[rep.RunID] = results
	s.bmu.Unlock()
	defer func() {
		s.bmu.Lock()
		delete(s.batches, rep.RunID)
		s.bmu.Unlock()
	}()

	s.logger.Info(ctx, "batch started", logger.String("run_id", rep.RunID), logger.Int("games", len(games)))

	var cause error
	sent := 0
	for i := range games {
		if err := ctx.Err(); err != nil {
			cause = err
			break
		}
		t := worker.Task{BatchID: rep.RunID, GameID: claimKey(games[i], rep.RunID, i), Raw: games[i]}
		if err := q.EnqueueWait(ctx, t); err != nil {
			cause = err
			break
		}
		sent++
	}

collect:
	for rep.Total < sent {
		select {
		case o := <-results:
			rep.Add(o)
		case <-ctx.Done():
			cause = ctx.Err()
			break collect
		}
	}
	rep.Finished = time.Now()

	pubCtx := context.WithoutCancel(ctx)
	if err := s.publisher.PublishBatch(pubCtx, rep); err != nil {
		s.logger.Warn(ctx, "failed to publish batch report", logger.String("run_id", rep.RunID), logger.Error(err))
	}

	if cause != nil {
		return rep, fmt.Errorf("%w: %d of %d games reported: %v", ErrBatchCancelled, rep.Total, len(games), cause)
	}
	return rep, nil
}

// Submit queues a single game without waiting for it. It returns the run id
// stamped on the game's rows.
func (s *Service) Submit(ctx context.Context, raw model.RawGame) (string, error) { //nolint:gocritic // hugeParam: RawGame is handed to the queue by value
	q, err := s.runningQueue()
	if err != nil {
		return "", err
	}

	id := Identity(raw)
	if id == "" {
		return "", ErrMissingGameID
	}

	runID := uuid.NewString()
	if !q.Enqueue(ctx, worker.Task{BatchID: runID, GameID: id, Raw: raw}) {
		return "", fmt.Errorf("%w: game %s", ErrBackpressure, id)
	}
	s.logger.Debug(ctx, "game submitted", logger.String("game_id", id), logger.String("run_id", runID))
	return runID, nil
}

// Record implements worker.Recorder.
func (s *Service) Record(ctx context.Context, o model.GameOutcome) { //nolint:gocritic // hugeParam: outcomes are passed by value
	metrics.RecordGameProcessed(string(o.Status))
	metrics.RecordGameLatency(float64(o.Duration.Milliseconds()))

	s.bmu.Lock()
	s.totals.Add(o)
	results := s.batches[o.BatchID]
	s.bmu.Unlock()

	if results != nil {
		results <- o
		return
	}

	fields := []logger.Field{
		logger.String("game_id", o.GameID),
		logger.String("status", string(o.Status)),
		logger.Int("possessions", o.Possessions),
		logger.Int("attempts", o.Attempts),
	}
	if o.Err != nil {
		s.logger.Warn(ctx, "submitted game not committed", append(fields, logger.Error(o.Err))...)
		return
	}
	s.logger.Info(ctx, "submitted game processed", fields...)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["inFlight"] = s.claims.Size()
		stats["workers"] = s.pool.Size()
	}

	s.bmu.Lock()
	totals := s.totals
	totals.Faults = make(map[string]int, len(s.totals.Faults))
	for k, v := range s.totals.Faults {
		totals.Faults[k] = v
	}
	stats["openBatches"] = len(s.batches)
	s.bmu.Unlock()
	stats["games"] = totals

	return stats
}

// Game returns the processing record of one game.
func (s *Service) Game(ctx context.Context, gameID string) (repository.GameRecord, error) {
	return s.store.Game(ctx, gameID)
}

// Possessions lists committed possessions.
func (s *Service) Possessions(ctx context.Context, f repository.Filter) ([]model.Possession, error) {
	return s.store.Possessions(ctx, f)
}

// LineupRatings aggregates offensive, defensive and net rating per lineup.
func (s *Service) LineupRatings(ctx context.Context, f repository.Filter) ([]types.LineupRating, error) {
	return s.store.LineupRatings(ctx, f)
}

// PlayerOnOff compares team margins with a player on and off court.
func (s *Service) PlayerOnOff(ctx context.Context, f repository.Filter) ([]types.PlayerOnOff, error) {
	return s.store.PlayerOnOff(ctx, f)
}

// ValidationResults lists per-game Dean Oliver checks.
func (s *Service) ValidationResults(ctx context.Context, f repository.Filter) ([]model.ValidationResult, error) {
	return s.store.ValidationResults(ctx, f)
}

func (s *Service) runningQueue() (*queue.InMemoryQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.queue, nil
}

// claimKey is the in-flight key of a game. Games without an identity get a
// key of their own so they fail in normalization instead of colliding.
func claimKey(raw model.RawGame, runID string, i int) string { //nolint:gocritic // hugeParam: read-only
	if id := Identity(raw); id != "" {
		return id
	}
	return runID + "#" + strconv.Itoa(i)
}

var (
	_ worker.Recorder  = (*Service)(nil)
	_ repository.Views = (*Service)(nil)
)
