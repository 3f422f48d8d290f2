package model

import "time"

// GameOutcome summarizes the processing of one game.
type GameOutcome struct {
	BatchID     string
	GameID      string
	Status      GameStatus
	Unreliable  bool
	Possessions int
	Snapshots   int
	Faults      []Fault
	Validation  *ValidationResult
	Attempts    int
	Duration    time.Duration
	Err         error
}

// FailedValidation reports whether the game had a failing validation row.
func (o GameOutcome) FailedValidation() bool {
	return o.Validation != nil && !o.Validation.Pass
}

// BatchReport counts per-game results of one run. There is no aggregate
// pass/fail; each game lands in its own bucket.
type BatchReport struct {
	RunID            string         `json:"run_id"`
	Started          time.Time      `json:"started"`
	Finished         time.Time      `json:"finished"`
	Total            int            `json:"total"`
	Succeeded        int            `json:"succeeded"`
	Skipped          int            `json:"skipped"`
	Unreliable       int            `json:"flagged_unreliable"`
	FailedValidation int            `json:"failed_validation"`
	Quarantined      int            `json:"quarantined"`
	Failed           int            `json:"failed"`
	Possessions      int            `json:"possessions"`
	Faults           map[string]int `json:"faults"`
}

// Add folds one game outcome into the report.
func (r *BatchReport) Add(o GameOutcome) { //nolint:gocritic // hugeParam: outcomes are passed by value
	r.Total++
	switch o.Status {
	case StatusCommitted:
		r.Succeeded++
	case StatusSkipped:
		r.Skipped++
	case StatusQuarantined:
		r.Quarantined++
	default:
		r.Failed++
	}
	if o.Unreliable {
		r.Unreliable++
	}
	if o.FailedValidation() {
		r.FailedValidation++
	}
	r.Possessions += o.Possessions
	for _, f := range o.Faults {
		if r.Faults == nil {
			r.Faults = make(map[string]int)
		}
		r.Faults[f.KindName()]++
	}
}
