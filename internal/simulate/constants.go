package simulate

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// Generator defaults.
const (
	DefaultPeriods       = 4
	DefaultPerPeriod     = 50
	DefaultRosterSize    = 9
	PeriodSeconds        = 720
	DefaultSubmitTimeout = 30 * time.Second
)

// Event mix weights, out of 100.
const (
	weightMade       = 40
	weightMissLost   = 25
	weightPutback    = 8
	weightTurnover   = 14
	weightFreeThrows = 8
	weightAndOne     = 5
)

// Probabilities in percent.
const (
	threePointPct   = 35
	freeThrowPct    = 75
	substitutionPct = 18
	timeoutPct      = 4
)

// league is the pool of team ids games are drawn from.
var league = []string{"ATL", "BOS", "CHI", "DEN", "LAL", "MIA", "NYK", "PHX"} //nolint:gochecknoglobals // fixed team pool
