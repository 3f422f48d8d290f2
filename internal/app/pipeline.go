package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/adapters/report"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/assemble"
	"github.com/okian/courtside/internal/domain/lineup"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/normalize"
	"github.com/okian/courtside/internal/domain/oliver"
	"github.com/okian/courtside/internal/domain/possession"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// Pipeline runs one game through normalize, detect, track, assemble,
// validate and commit. It holds no per-game state between calls.
type Pipeline struct {
	store     repository.Writer
	validator *oliver.Validator
	publisher report.Publisher
	derive    bool
	logger    logger.Logger
}

// NewPipeline wires the per-game stages to a writer and publisher.
func NewPipeline(store repository.Writer, v *oliver.Validator, pub report.Publisher, derive bool, l logger.Logger) *Pipeline {
	if l == nil {
		l = logger.Get().Named("pipeline")
	}
	if pub == nil {
		pub = report.NewLogPublisher(l)
	}
	return &Pipeline{store: store, validator: v, publisher: pub, derive: derive, logger: l}
}

// Process implements worker.Processor. Nothing is committed unless every
// stage finished inside ctx.
func (p *Pipeline) Process(ctx context.Context, t worker.Task) model.GameOutcome { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	start := time.Now()
	out := model.GameOutcome{BatchID: t.BatchID, GameID: t.GameID}

	g, faults, err := normalize.Normalize(t.Raw)
	if err != nil {
		return p.skip(ctx, t, out, err)
	}
	out.GameID = g.ID

	det := possession.Detect(g)
	trk := lineup.Track(g)
	faults = append(faults, det.Faults...)
	faults = append(faults, trk.Faults...)

	facts := assemble.Assemble(g, det, trk)
	facts.RunID = t.BatchID

	out.Unreliable = facts.Unreliable
	out.Possessions = len(facts.Possessions)
	out.Snapshots = len(facts.Snapshots)

	if res, ok := p.validate(ctx, g, len(facts.Possessions)); ok {
		facts.Validation = &res
		out.Validation = &res
		if f, failed := oliver.Fault(res); failed {
			faults = append(faults, f)
		}
	}
	out.Faults = faults
	p.logFaults(ctx, faults)

	if err := ctx.Err(); err != nil {
		out.Status = model.StatusFailed
		out.Err = err
		return out
	}

	if out.FailedValidation() && p.validator.Quarantine() {
		out.Status = model.StatusQuarantined
		reason := fmt.Sprintf("deviation %.2f%% exceeds %.2f%%", out.Validation.DeviationPct, out.Validation.TolerancePct)
		if err := p.store.MarkGame(ctx, g.ID, model.StatusQuarantined, reason); err != nil {
			out.Status = model.StatusFailed
			out.Err = err
			return out
		}
		p.logger.Warn(ctx, "game quarantined", logger.String("game_id", g.ID), logger.String("reason", reason))
	} else {
		if err := p.store.WriteGame(ctx, facts); err != nil {
			out.Status = model.StatusFailed
			out.Err = err
			return out
		}
		out.Status = model.StatusCommitted
	}

	p.record(facts, out)
	if out.Validation != nil {
		if err := p.publisher.PublishValidation(ctx, *out.Validation); err != nil {
			p.logger.Warn(ctx, "failed to publish validation", logger.String("game_id", g.ID), logger.Error(err))
		}
	}

	p.logger.Debug(ctx, "game processed",
		logger.String("game_id", g.ID),
		logger.String("status", string(out.Status)),
		logger.Int("possessions", out.Possessions),
		logger.Int("snapshots", out.Snapshots),
		logger.Int("faults", len(faults)),
		logger.Duration("elapsed", time.Since(start)))
	return out
}

// skip handles a game that cannot be processed at all.
func (p *Pipeline) skip(ctx context.Context, t worker.Task, out model.GameOutcome, cause error) model.GameOutcome { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	out.Status = model.StatusSkipped
	out.Err = cause
	metrics.RecordErrorByComponent("normalize", "malformed")
	p.logger.Warn(ctx, "skipping malformed game", logger.String("game_id", t.GameID), logger.Error(cause))

	if id := Identity(t.Raw); id != "" {
		if err := p.store.MarkGame(ctx, id, model.StatusSkipped, cause.Error()); err != nil {
			p.logger.Error(ctx, "failed to mark game skipped", logger.String("game_id", id), logger.Error(err))
		}
	}
	return out
}

// validate runs the Dean Oliver check against the game's box score, or a
// derived one when allowed. ok is false when there is nothing to check.
func (p *Pipeline) validate(ctx context.Context, g model.Game, detected int) (model.ValidationResult, bool) { //nolint:gocritic // hugeParam: Game is read-only here
	var box model.BoxScore
	switch {
	case g.BoxScore != nil:
		box = *g.BoxScore
	case p.derive:
		box = oliver.DeriveBoxScore(g)
	default:
		return model.ValidationResult{}, false
	}

	res, err := p.validator.Validate(g.ID, detected, box)
	if err != nil {
		p.logger.Warn(ctx, "box score rejected", logger.String("game_id", g.ID), logger.Error(err))
		metrics.RecordErrorByComponent("validator", "invalid_box_score")
		return model.ValidationResult{}, false
	}
	metrics.RecordValidation(res.Pass, res.DeviationPct)
	return res, true
}

// logFaults writes every data-quality fault with enough context to be
// re-derived from the source events.
func (p *Pipeline) logFaults(ctx context.Context, faults []model.Fault) {
	for _, f := range faults {
		kind := f.KindName()
		metrics.RecordFault(kind)
		p.logger.Warn(ctx, "data quality fault",
			logger.String("game_id", f.GameID),
			logger.Int64("sequence_number", f.Seq),
			logger.String("rule", f.Rule),
			logger.String("kind", kind),
			logger.String("detail", f.Detail))
	}
}

func (p *Pipeline) record(facts model.GameFacts, out model.GameOutcome) { //nolint:gocritic // hugeParam: read-only
	if out.Status != model.StatusCommitted {
		return
	}
	metrics.RecordPossessions(len(facts.Possessions))
	metrics.RecordSnapshots(len(facts.Snapshots))
	metrics.RecordStints(len(facts.Stints))
	if facts.Unreliable {
		metrics.RecordUnreliableGame()
	}
}

// Identity returns the game id a raw game claims, from its envelope or its
// first event.
func Identity(raw model.RawGame) string { //nolint:gocritic // hugeParam: read-only
	if raw.GameID != "" {
		return raw.GameID
	}
	for _, e := range raw.Events {
		if id := normalize.GameID(e); id != "" {
			return id
		}
	}
	return ""
}

var _ worker.Processor = (*Pipeline)(nil)
