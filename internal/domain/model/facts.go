package model

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// LineupSize is the number of players a team has on court.
const LineupSize = 5

// Outcome is the terminal result of a possession.
type Outcome string

// Possession outcomes.
const (
	OutcomeMadeShot             Outcome = "made_shot"
	OutcomeMissedReboundLost    Outcome = "missed_shot_and_rebound_lost"
	OutcomeTurnover             Outcome = "turnover"
	OutcomeEndOfPeriod          Outcome = "end_of_period"
	OutcomeNonShootingFoulReset Outcome = "non_shooting_foul_reset"
)

// Possession is a maximal contiguous event range of one team's offense.
type Possession struct {
	GameID              string  `json:"game_id"`
	Number              int     `json:"possession_number"`
	Period              int     `json:"period"`
	StartSeq            int64   `json:"start_sequence_number"`
	EndSeq              int64   `json:"end_sequence_number"`
	OffenseTeamID       string  `json:"offensive_team_id"`
	DefenseTeamID       string  `json:"defensive_team_id"`
	Outcome             Outcome `json:"outcome"`
	Points              int     `json:"points_scored"`
	OffensiveRebounds   int     `json:"offensive_rebounds"`
	OffensiveLineupHash string  `json:"offensive_lineup_hash"`
	DefensiveLineupHash string  `json:"defensive_lineup_hash"`
}

// Contains reports whether seq falls inside the possession.
func (p Possession) Contains(seq int64) bool {
	return seq >= p.StartSeq && seq <= p.EndSeq
}

// LineupSnapshot is one team's on-court five at an event boundary.
type LineupSnapshot struct {
	GameID  string             `json:"game_id"`
	Seq     int64              `json:"sequence_number"`
	TeamID  string             `json:"team_id"`
	Players [LineupSize]string `json:"players"`
	Hash    string             `json:"lineup_hash"`
}

// NewLineupSnapshot sorts players into canonical order and derives the hash.
func NewLineupSnapshot(gameID string, seq int64, teamID string, players []string) LineupSnapshot {
	s := LineupSnapshot{GameID: gameID, Seq: seq, TeamID: teamID}
	sorted := append([]string(nil), players...)
	sort.Strings(sorted)
	copy(s.Players[:], sorted)
	s.Hash = LineupHash(sorted)
	return s
}

// Distinct reports whether all five slots hold different, non-empty players.
func (s LineupSnapshot) Distinct() bool {
	seen := make(map[string]struct{}, LineupSize)
	for _, p := range s.Players {
		if p == "" {
			return false
		}
		if _, ok := seen[p]; ok {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}

// Has reports whether the player is in the snapshot.
func (s LineupSnapshot) Has(playerID string) bool {
	for _, p := range s.Players {
		if p == playerID {
			return true
		}
	}
	return false
}

// LineupHash returns a permutation-stable identifier for a set of players.
func LineupHash(players []string) string {
	sorted := append([]string(nil), players...)
	sort.Strings(sorted)
	sum := xxhash.Sum64String(strings.Join(sorted, "|"))
	return strconv.FormatUint(sum, 16)
}

// Stint is one continuous on-court interval of a player.
type Stint struct {
	GameID      string `json:"game_id"`
	PlayerID    string `json:"player_id"`
	TeamID      string `json:"team_id"`
	Number      int    `json:"stint_number"`
	StartSeq    int64  `json:"start_sequence_number"`
	EndSeq      *int64 `json:"end_sequence_number"`
	PlusMinus   int    `json:"plus_minus_during_stint"`
	ClosedByGap bool   `json:"-"`
}

// Open reports whether the stint has not been closed yet.
func (s Stint) Open() bool { return s.EndSeq == nil }

// EventFact is the team-level plus/minus row emitted for every event.
type EventFact struct {
	GameID           string    `json:"game_id"`
	Seq              int64     `json:"sequence_number"`
	Period           int       `json:"period"`
	ClockSeconds     int       `json:"game_clock_seconds"`
	Type             EventType `json:"event_type"`
	PossessionNumber int       `json:"possession_number"`
	OffenseTeamID    string    `json:"offensive_team_id"`
	HomeScore        int       `json:"home_score"`
	AwayScore        int       `json:"away_score"`
	HomePlusMinus    int       `json:"home_plus_minus"`
	HomeLineupHash   string    `json:"home_lineup_hash"`
	AwayLineupHash   string    `json:"away_lineup_hash"`
}

// PlayerFact is one on-court player's row at one event.
type PlayerFact struct {
	GameID      string `json:"game_id"`
	Seq         int64  `json:"sequence_number"`
	PlayerID    string `json:"player_id"`
	TeamID      string `json:"team_id"`
	OnCourt     bool   `json:"on_court"`
	StintNumber int    `json:"stint_number"`
	PlusMinus   int    `json:"plus_minus"`
}

// ValidationResult is the Dean Oliver cross-check for one game.
type ValidationResult struct {
	GameID       string  `json:"game_id"`
	Detected     int     `json:"detected_possession_count"`
	Estimated    float64 `json:"estimated_possession_count"`
	DeviationPct float64 `json:"deviation_pct"`
	TolerancePct float64 `json:"tolerance_pct"`
	Pass         bool    `json:"pass"`
	Derived      bool    `json:"derived_box_score"`
}

// GameFacts is everything committed for one game in one transaction.
type GameFacts struct {
	GameID      string
	HomeTeamID  string
	AwayTeamID  string
	RunID       string
	Unreliable  bool
	Possessions []Possession
	Snapshots   []LineupSnapshot
	Stints      []Stint
	EventFacts  []EventFact
	PlayerFacts []PlayerFact
	Validation  *ValidationResult
}
