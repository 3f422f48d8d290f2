package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/courtside/internal/adapters/http/api"
	"github.com/okian/courtside/internal/adapters/http/swagger"
	"github.com/okian/courtside/internal/adapters/report"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/adapters/source"
	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/config"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// HTTP server and background timing constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	redisStreamMaxLen      = 100_000
)

func main() {
	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	err = run(ctx, cfg, log)
	stop()
	_ = logger.Sync()
	if err != nil {
		log.Error(context.Background(), "courtside exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the store, publisher and service, processes InputDir when set
// and serves the API until ctx ends when Serve is on.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithBatchSize(cfg.DBBatchSize),
		repository.WithBreaker(uint32(cfg.BreakerFailureThreshold), cfg.BreakerTimeout()), //nolint:gosec // validated >= 1
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()

	pub, closePub, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePub()

	svc := service.New(store,
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithGameTimeout(cfg.GameTimeout()),
		service.WithMaxRetries(cfg.MaxRetries),
		service.WithTolerance(cfg.TolerancePct),
		service.WithQuarantine(cfg.QuarantineOnFailure),
		service.WithDeriveBoxScore(cfg.DeriveBoxScore),
		service.WithPublisher(pub),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "failed to stop service", logger.Error(err))
		}
	}()

	if cfg.InputDir != "" {
		if err := processDir(ctx, cfg, svc, log); err != nil {
			return err
		}
	}

	if !cfg.Serve {
		return nil
	}

	go startServiceMetricsUpdater(ctx, svc)
	return serve(ctx, cfg, newRouter(cfg, svc), log)
}

// newPublisher returns the Redis stream publisher when an address is
// configured and the log publisher otherwise.
func newPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) (report.Publisher, func(), error) {
	if cfg.RedisAddr == "" {
		return report.NewLogPublisher(log.Named("report")), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Info(ctx, "publishing validation to redis", logger.String("addr", cfg.RedisAddr), logger.String("stream", cfg.RedisStream))

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn(context.Background(), "failed to close redis client", logger.Error(err))
		}
	}
	return report.NewStreamPublisher(client, cfg.RedisStream, redisStreamMaxLen), closeFn, nil
}

// processDir runs every game file under InputDir as one batch.
func processDir(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) error {
	res, err := source.NewDirLoader(cfg.InputDir,
		source.WithConcurrency(cfg.LoaderConcurrency),
		source.WithLogger(log.Named("source")),
	).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading %s: %w", cfg.InputDir, err)
	}

	rep, err := svc.ProcessBatch(ctx, res.Games)
	log.Info(ctx, "batch finished",
		logger.String("run_id", rep.RunID),
		logger.String("input_dir", cfg.InputDir),
		logger.Int("unreadable_files", len(res.Failed)),
		logger.Int("total", rep.Total),
		logger.Int("succeeded", rep.Succeeded),
		logger.Int("failed", rep.Failed),
		logger.Int("skipped", rep.Skipped),
		logger.Int("quarantined", rep.Quarantined),
		logger.Int("failed_validation", rep.FailedValidation),
		logger.Int("possessions", rep.Possessions),
		logger.Duration("elapsed", rep.Finished.Sub(rep.Started)),
	)
	if err != nil {
		return fmt.Errorf("processing %s: %w", cfg.InputDir, err)
	}
	return nil
}

// newRouter mounts the business API and the docs routes.
func newRouter(cfg *config.Config, svc *service.Service) http.Handler {
	r := api.NewServer(svc,
		api.WithCORSOrigins(cfg.Origins()),
		api.WithRequestTimeout(cfg.RequestTimeout()),
		api.WithSubmitRateLimit(cfg.SubmitRatePerMinute, time.Minute),
		api.WithLogger(logger.Get().Named("api")),
	).Router()
	swagger.Register(r)
	return r
}

// serve runs the HTTP server until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, cfg *config.Config, h http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// startServiceMetricsUpdater mirrors service stats into gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.Stats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workers, ok := stats["workers"].(int); ok {
		metrics.UpdateWorkerCount(workers)
	}
}
