// Package oliver cross-checks detected possession counts against Dean
// Oliver's box-score estimate.
package oliver

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/okian/courtside/internal/domain/model"
)

// DefaultTolerancePct is the default pass band, in percent.
const DefaultTolerancePct = 5.0

// FreeThrowFactor weights free-throw attempts into possessions.
const FreeThrowFactor = 0.44

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validator compares detected possessions with the formula estimate.
type Validator struct {
	tolerance  float64
	quarantine bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithTolerance sets the pass band in percent.
func WithTolerance(pct float64) Option {
	return func(v *Validator) { v.tolerance = pct }
}

// WithQuarantine makes failing games quarantined instead of committed.
func WithQuarantine(enabled bool) Option {
	return func(v *Validator) { v.quarantine = enabled }
}

// New creates a Validator with the default 5% tolerance.
func New(opts ...Option) (*Validator, error) {
	v := &Validator{tolerance: DefaultTolerancePct}
	for _, opt := range opts {
		opt(v)
	}
	if v.tolerance < 0 || math.IsNaN(v.tolerance) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, v.tolerance)
	}
	return v, nil
}

// Tolerance returns the configured pass band in percent.
func (v *Validator) Tolerance() float64 { return v.tolerance }

// Quarantine reports whether failing games should be quarantined.
func (v *Validator) Quarantine() bool { return v.quarantine }

// Estimate returns FGA + 0.44·FTA − ORB + TOV.
func Estimate(t model.TeamTotals) float64 {
	return float64(t.FGA) + FreeThrowFactor*float64(t.FTA) - float64(t.ORB) + float64(t.TOV)
}

// Validate compares a game's detected possession count with the estimate
// summed over the box score's teams. It never mutates possession data.
func (v *Validator) Validate(gameID string, detected int, box model.BoxScore) (model.ValidationResult, error) {
	if err := structValidator().Struct(box); err != nil {
		return model.ValidationResult{}, fmt.Errorf("%w: game %s: %v", ErrInvalidBoxScore, gameID, err)
	}
	est := Estimate(box.Sum())
	res := model.ValidationResult{
		GameID:       gameID,
		Detected:     detected,
		Estimated:    round(est, 2),
		TolerancePct: v.tolerance,
		Derived:      box.Derived,
	}
	switch {
	case est <= 0 && detected == 0:
		res.Pass = true
	case est <= 0:
		res.DeviationPct = 100
	default:
		res.DeviationPct = round(math.Abs(float64(detected)-est)/est*100, 4)
		res.Pass = res.DeviationPct <= v.tolerance
	}
	return res, nil
}

// Fault describes a failing result as a data-quality fault.
func Fault(r model.ValidationResult) (model.Fault, bool) {
	if r.Pass {
		return model.Fault{}, false
	}
	return model.Fault{
		Kind:   model.ErrToleranceExceeded,
		GameID: r.GameID,
		Rule:   "dean_oliver_tolerance",
		Detail: fmt.Sprintf("detected %d vs estimated %.2f (%.2f%% > %.2f%%)", r.Detected, r.Estimated, r.DeviationPct, r.TolerancePct),
	}, true
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
