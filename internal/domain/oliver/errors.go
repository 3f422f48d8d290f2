package oliver

import "errors"

var (
	// ErrInvalidBoxScore is returned when box-score totals fail validation.
	ErrInvalidBoxScore = errors.New("invalid box score")
	// ErrInvalidTolerance is returned for a negative tolerance.
	ErrInvalidTolerance = errors.New("tolerance must be non-negative")
)
