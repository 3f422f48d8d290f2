package model

import (
	"errors"
	"fmt"
)

// Fault kinds. Only ErrMalformedGame stops a game; the rest are data-quality
// faults that are logged and counted.
var (
	ErrMalformedGame           = errors.New("malformed game")
	ErrSubstitutionConsistency = errors.New("substitution consistency")
	ErrTerminationAmbiguity    = errors.New("possession termination ambiguity")
	ErrUnterminatedPossession  = errors.New("unterminated possession")
	ErrToleranceExceeded       = errors.New("validation tolerance exceeded")
	ErrLineupCardinality       = errors.New("lineup cardinality")
	ErrUnknownEvent            = errors.New("unknown event type")
)

// MalformedGameError reports a game that cannot be processed at all.
type MalformedGameError struct {
	GameID string
	Reason string
}

func (e *MalformedGameError) Error() string {
	if e.GameID == "" {
		return fmt.Sprintf("malformed game: %s", e.Reason)
	}
	return fmt.Sprintf("malformed game %s: %s", e.GameID, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedGame.
func (e *MalformedGameError) Unwrap() error { return ErrMalformedGame }

// Fault is a recoverable data-quality finding with enough context to be
// re-derived from the source events.
type Fault struct {
	Kind   error
	GameID string
	Seq    int64
	Rule   string
	Detail string
}

func (f Fault) Error() string {
	return fmt.Sprintf("%v: game=%s seq=%d rule=%s: %s", f.Kind, f.GameID, f.Seq, f.Rule, f.Detail)
}

// Unwrap returns the fault kind.
func (f Fault) Unwrap() error { return f.Kind }

// KindName returns a short label for metrics.
func (f Fault) KindName() string {
	switch {
	case errors.Is(f.Kind, ErrSubstitutionConsistency):
		return "substitution_consistency"
	case errors.Is(f.Kind, ErrTerminationAmbiguity):
		return "termination_ambiguity"
	case errors.Is(f.Kind, ErrUnterminatedPossession):
		return "unterminated_possession"
	case errors.Is(f.Kind, ErrToleranceExceeded):
		return "tolerance_exceeded"
	case errors.Is(f.Kind, ErrLineupCardinality):
		return "lineup_cardinality"
	case errors.Is(f.Kind, ErrUnknownEvent):
		return "unknown_event"
	}
	return "other"
}
