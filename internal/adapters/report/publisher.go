// Package report hands validation results and batch summaries to downstream
// consumers.
package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// DefaultStream is the Redis stream validation rows are appended to.
const DefaultStream = "courtside.validation"

// Publisher receives per-game validation rows and per-run reports.
type Publisher interface {
	PublishValidation(ctx context.Context, v model.ValidationResult) error
	PublishBatch(ctx context.Context, r model.BatchReport) error
}

// streamClient is the slice of the Redis client the publisher needs.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher appends results to a Redis stream.
type StreamPublisher struct {
	client streamClient
	stream string
	maxLen int64
}

// NewStreamPublisher creates a publisher on stream. maxLen > 0 caps the
// stream approximately.
func NewStreamPublisher(client streamClient, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// PublishValidation appends one validation row.
func (p *StreamPublisher) PublishValidation(ctx context.Context, v model.ValidationResult) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling validation result: %w", err)
	}

	err = p.client.XAdd(ctx, p.args(map[string]any{
		"type":    "validation",
		"game_id": v.GameID,
		"pass":    strconv.FormatBool(v.Pass),
		"data":    string(data),
	})).Err()
	metrics.RecordPublished("redis", outcome(err))
	if err != nil {
		return fmt.Errorf("publishing validation for %s: %w", v.GameID, err)
	}
	return nil
}

// PublishBatch appends one run summary.
func (p *StreamPublisher) PublishBatch(ctx context.Context, r model.BatchReport) error { //nolint:gocritic // hugeParam: report is passed by value
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling batch report: %w", err)
	}

	err = p.client.XAdd(ctx, p.args(map[string]any{
		"type":   "batch",
		"run_id": r.RunID,
		"data":   string(data),
	})).Err()
	metrics.RecordPublished("redis", outcome(err))
	if err != nil {
		return fmt.Errorf("publishing batch %s: %w", r.RunID, err)
	}
	return nil
}

func (p *StreamPublisher) args(values map[string]any) *redis.XAddArgs {
	a := &redis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		a.MaxLen = p.maxLen
		a.Approx = true
	}
	return a
}

// LogPublisher writes results to the structured log.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher creates a publisher backed by l.
func NewLogPublisher(l logger.Logger) *LogPublisher {
	if l == nil {
		l = logger.Get().Named("report")
	}
	return &LogPublisher{log: l}
}

// PublishValidation logs one validation row; failures are warnings.
func (p *LogPublisher) PublishValidation(ctx context.Context, v model.ValidationResult) error {
	fields := []logger.Field{
		logger.String("game_id", v.GameID),
		logger.Int("detected", v.Detected),
		logger.Float64("estimated", v.Estimated),
		logger.Float64("deviation_pct", v.DeviationPct),
		logger.Float64("tolerance_pct", v.TolerancePct),
		logger.Bool("derived_box_score", v.Derived),
	}
	if v.Pass {
		p.log.Info(ctx, "validation passed", fields...)
	} else {
		p.log.Warn(ctx, "validation tolerance exceeded", fields...)
	}
	metrics.RecordPublished("log", outcome(nil))
	return nil
}

// PublishBatch logs the run summary.
func (p *LogPublisher) PublishBatch(ctx context.Context, r model.BatchReport) error { //nolint:gocritic // hugeParam: report is passed by value
	p.log.Info(ctx, "batch finished",
		logger.String("run_id", r.RunID),
		logger.Int("total", r.Total),
		logger.Int("succeeded", r.Succeeded),
		logger.Int("skipped", r.Skipped),
		logger.Int("flagged_unreliable", r.Unreliable),
		logger.Int("failed_validation", r.FailedValidation),
		logger.Int("quarantined", r.Quarantined),
		logger.Int("failed", r.Failed),
		logger.Duration("elapsed", r.Finished.Sub(r.Started)),
		logger.Any("faults", r.Faults))
	metrics.RecordPublished("log", outcome(nil))
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	_ Publisher = (*StreamPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
