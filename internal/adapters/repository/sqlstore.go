package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pressly/goose/v3"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	defaultBatchSize        = 200
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second
)

// SQLStore is the database/sql implementation of Store.
type SQLStore struct {
	db               *sql.DB
	driver           string
	batchSize        int
	breakerThreshold uint32
	breakerTimeout   time.Duration
	breaker          *gobreaker.CircuitBreaker[any]
	log              logger.Logger
	now              func() time.Time
}

// Open connects to the database, applies migrations and returns a ready store.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	s := &SQLStore{
		driver:           driver,
		batchSize:        defaultBatchSize,
		breakerThreshold: defaultBreakerThreshold,
		breakerTimeout:   defaultBreakerTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("store")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if driver == DriverSQLite {
		// one connection so per-connection pragmas stick and writers serialize
		db.SetMaxOpenConns(1)
		if err := s.optimizeSQLite(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := runMigrations(db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.breaker = s.newBreaker()
	s.log.Info(ctx, "store ready", logger.String("driver", driver), logger.Int("batch_size", s.batchSize))
	return s, nil
}

func runMigrations(db *sql.DB, driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) optimizeSQLite(ctx context.Context) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
		}
	}
	return nil
}

func (s *SQLStore) newBreaker() *gobreaker.CircuitBreaker[any] {
	threshold := s.breakerThreshold
	settings := gobreaker.Settings{
		Name:        "store-commit",
		MaxRequests: 1,
		Timeout:     s.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// bad rows and cancelled games say nothing about database health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrConstraint) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn(context.Background(), "breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			_ = metrics.UpdateBreakerState(to.String())
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// BreakerState reports the commit breaker state.
func (s *SQLStore) BreakerState() string {
	return s.breaker.State().String()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into the driver's bind syntax.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

var _ Store = (*SQLStore)(nil)
