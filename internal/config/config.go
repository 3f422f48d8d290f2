// Package config defines process configuration and its loading.
package config

import (
	"context"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Serve keeps the HTTP API running after any directory batch.
	Serve bool `koanf:"serve"`

	// InputDir, when set, is processed as one batch at startup.
	InputDir string `koanf:"input_dir" validate:"omitempty,max=4096"`

	// QueueSize bounds the in-memory game queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// WorkerCount sets the number of game workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// DedupeSize caps the number of games in flight at once.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// GameTimeoutMS bounds one processing attempt of one game.
	GameTimeoutMS int `koanf:"game_timeout_ms" validate:"gte=1"`

	// MaxRetries is how often an aborted game is retried from scratch.
	MaxRetries int `koanf:"max_retries" validate:"gte=0,lte=10"`

	// DBDriver selects the fact store: sqlite3 or postgres.
	DBDriver string `koanf:"db_driver" validate:"oneof=sqlite3 postgres"`

	// DBDSN is the driver data source name.
	DBDSN string `koanf:"db_dsn" validate:"required"`

	// DBBatchSize is the number of rows per multi-row insert. The store
	// lowers it per table to stay under the driver's bind-variable limit.
	DBBatchSize int `koanf:"db_batch_size" validate:"gte=1,lte=5000"`

	// TolerancePct is the Dean Oliver deviation tolerance.
	TolerancePct float64 `koanf:"tolerance_pct" validate:"gt=0,lte=100"`

	// QuarantineOnFailure marks games failing validation QUARANTINED.
	QuarantineOnFailure bool `koanf:"quarantine_on_failure"`

	// DeriveBoxScore estimates box totals from events when none are supplied.
	DeriveBoxScore bool `koanf:"derive_box_score"`

	// RedisAddr enables the Redis stream publisher when set.
	RedisAddr string `koanf:"redis_addr" validate:"omitempty,hostname_port"`

	// RedisStream names the stream validation rows are appended to.
	RedisStream string `koanf:"redis_stream"`

	// BreakerFailureThreshold is the consecutive commit failures that open the breaker.
	BreakerFailureThreshold int `koanf:"breaker_failure_threshold" validate:"gte=1"`

	// BreakerTimeoutMS is how long the breaker stays open.
	BreakerTimeoutMS int `koanf:"breaker_timeout_ms" validate:"gte=1"`

	// LoaderConcurrency caps concurrent file reads from InputDir.
	LoaderConcurrency int `koanf:"loader_concurrency" validate:"gte=1"`

	// CORSOrigins is a comma-separated list of origins allowed by the API.
	CORSOrigins string `koanf:"cors_origins"`

	// RequestTimeoutMS bounds one HTTP request.
	RequestTimeoutMS int `koanf:"request_timeout_ms" validate:"gte=1"`

	// SubmitRatePerMinute caps game submissions per client IP. Zero disables it.
	SubmitRatePerMinute int `koanf:"submit_rate_per_minute" validate:"gte=0"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		QueueSize:               1024,
		WorkerCount:             runtime.NumCPU(),
		DedupeSize:              50_000,
		GameTimeoutMS:           30_000,
		MaxRetries:              2,
		DBDriver:                "sqlite3",
		DBDSN:                   "courtside.db",
		DBBatchSize:             200,
		TolerancePct:            5,
		DeriveBoxScore:          true,
		RedisStream:             "courtside.validation",
		BreakerFailureThreshold: 5,
		BreakerTimeoutMS:        30_000,
		LoaderConcurrency:       8,
		CORSOrigins:             "*",
		RequestTimeoutMS:        30_000,
		SubmitRatePerMinute:     600,
	}
}

// GameTimeout returns GameTimeoutMS as a duration.
func (c *Config) GameTimeout() time.Duration {
	return time.Duration(c.GameTimeoutMS) * time.Millisecond
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Origins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// BreakerTimeout returns BreakerTimeoutMS as a duration.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutMS) * time.Millisecond
}
