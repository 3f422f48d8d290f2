// Package model contains domain models passed between layers.
package model

// EventType is the closed set of canonical play-by-play event kinds.
type EventType string

// Canonical event types.
const (
	EventMadeShot        EventType = "made_shot"
	EventMissedShot      EventType = "missed_shot"
	EventRebound         EventType = "rebound"
	EventTurnover        EventType = "turnover"
	EventFoul            EventType = "foul"
	EventFreeThrow       EventType = "free_throw"
	EventSubstitutionIn  EventType = "substitution_in"
	EventSubstitutionOut EventType = "substitution_out"
	EventTimeout         EventType = "timeout"
	EventJumpBall        EventType = "jump_ball"
	EventPeriodStart     EventType = "period_start"
	EventPeriodEnd       EventType = "period_end"
	EventOther           EventType = "other"
)

// Valid reports whether t is one of the canonical event types.
func (t EventType) Valid() bool {
	switch t {
	case EventMadeShot, EventMissedShot, EventRebound, EventTurnover, EventFoul,
		EventFreeThrow, EventSubstitutionIn, EventSubstitutionOut, EventTimeout,
		EventJumpBall, EventPeriodStart, EventPeriodEnd, EventOther:
		return true
	}
	return false
}

// Shot carries field-goal metadata for made_shot and missed_shot events.
type Shot struct {
	Value int // 2 or 3
}

// FreeThrow carries free-throw metadata.
type FreeThrow struct {
	Made      bool
	Number    int  // 1-based position within the trip, 0 when unknown
	Total     int  // trip length, 0 when unknown
	Technical bool // technical and flagrant shots are possession-neutral
}

// Final reports whether this is known to be the last shot of its trip.
func (f FreeThrow) Final() bool {
	return f.Total > 0 && f.Number >= f.Total
}

// Foul carries foul metadata.
type Foul struct {
	Shooting  bool
	Technical bool
}

// Sub carries the incoming player when a provider records a substitution as
// a single record; the event's PlayerID is then the outgoing player.
type Sub struct {
	IncomingPlayerID string
}

// Event is one canonical play-by-play occurrence. Seq is the sole ordering
// key within a game and is dense (1..N) after normalization.
type Event struct {
	GameID       string
	Seq          int64
	SourceSeq    string // provider ordering key, kept for audits
	Period       int
	ClockSeconds int // time remaining in period
	Type         EventType
	TeamID       string
	PlayerID     string // empty when the provider gave none
	Description  string

	Shot      Shot
	FreeThrow FreeThrow
	Foul      Foul
	Sub       Sub
}

// Points returns the points this event adds to the acting team's score.
func (e Event) Points() int {
	switch e.Type {
	case EventMadeShot:
		return e.Shot.Value
	case EventFreeThrow:
		if e.FreeThrow.Made {
			return 1
		}
	}
	return 0
}

// IsControl reports whether the event shows which team has the ball.
func (e Event) IsControl() bool {
	switch e.Type {
	case EventMadeShot, EventMissedShot, EventTurnover, EventRebound:
		return e.TeamID != ""
	case EventFreeThrow:
		return e.TeamID != "" && !e.FreeThrow.Technical
	}
	return false
}

// SameTick reports whether two events share a period and clock reading.
func (e Event) SameTick(o Event) bool {
	return e.Period == o.Period && e.ClockSeconds == o.ClockSeconds
}
