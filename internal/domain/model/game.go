package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// StarterSet is an explicit on-court set for one team at the start of a period.
type StarterSet struct {
	Period  int      `json:"period"`
	TeamID  string   `json:"team_id"`
	Players []string `json:"players"`
}

// TeamTotals are one team's box-score aggregates used by the validator.
type TeamTotals struct {
	TeamID string `json:"team_id" validate:"required"`
	FGA    int    `json:"fga" validate:"gte=0"`
	FTA    int    `json:"fta" validate:"gte=0"`
	ORB    int    `json:"orb" validate:"gte=0"`
	TOV    int    `json:"tov" validate:"gte=0"`
}

// BoxScore holds per-team totals for one game.
type BoxScore struct {
	GameID  string       `json:"game_id"`
	Teams   []TeamTotals `json:"teams" validate:"min=1,max=2,dive"`
	Derived bool         `json:"derived,omitempty"`
}

// Sum adds all team totals together.
func (b BoxScore) Sum() TeamTotals {
	var t TeamTotals
	for _, tt := range b.Teams {
		t.FGA += tt.FGA
		t.FTA += tt.FTA
		t.ORB += tt.ORB
		t.TOV += tt.TOV
	}
	return t
}

// Game is a normalized game: canonical events ordered by Seq.
type Game struct {
	ID         string
	HomeTeamID string
	AwayTeamID string
	Events     []Event
	Starters   []StarterSet
	BoxScore   *BoxScore
}

// Opponent returns the other team of the game, or "" when unknown.
func (g Game) Opponent(teamID string) string {
	switch teamID {
	case g.HomeTeamID:
		return g.AwayTeamID
	case g.AwayTeamID:
		return g.HomeTeamID
	}
	return ""
}

// HasTeam reports whether teamID is one of the two teams.
func (g Game) HasTeam(teamID string) bool {
	return teamID != "" && (teamID == g.HomeTeamID || teamID == g.AwayTeamID)
}

// StartersFor returns the explicit starters of a team for a period, if any.
func (g Game) StartersFor(period int, teamID string) ([]string, bool) {
	for _, s := range g.Starters {
		if s.Period == period && s.TeamID == teamID {
			return s.Players, true
		}
	}
	return nil, false
}

// GameStatus is the persisted processing state of a game.
type GameStatus string

// Game statuses.
const (
	StatusCommitted   GameStatus = "COMMITTED"
	StatusFailed      GameStatus = "FAILED"
	StatusQuarantined GameStatus = "QUARANTINED"
	StatusSkipped     GameStatus = "SKIPPED"
)

// GameTask is the unit of work dispatched to one worker.
type GameTask struct {
	BatchID  string
	GameID   string
	Raw      RawGame
	Enqueued time.Time
}

// RawGame is one game as delivered by the upstream producer.
type RawGame struct {
	GameID     string           `json:"game_id"`
	HomeTeamID string           `json:"home_team_id,omitempty"`
	AwayTeamID string           `json:"away_team_id,omitempty"`
	Starters   []StarterSet     `json:"starters,omitempty"`
	Events     []map[string]any `json:"events"`
	BoxScore   *BoxScore        `json:"box_score,omitempty"`
}

// Provider spellings of the envelope identity keys, in lookup order.
var (
	GameIDKeys     = []string{"game_id", "gameId", "GAME_ID", "game"}
	HomeTeamIDKeys = []string{"home_team_id", "homeTeamId", "HOME_TEAM_ID", "home_team"}
	AwayTeamIDKeys = []string{"away_team_id", "awayTeamId", "AWAY_TEAM_ID", "VISITOR_TEAM_ID", "away_team"}
)

// UnmarshalJSON decodes a game, reading the identity fields through their
// provider aliases. String and numeric ids are both accepted.
func (r *RawGame) UnmarshalJSON(data []byte) error {
	var body struct {
		Starters []StarterSet     `json:"starters"`
		Events   []map[string]any `json:"events"`
		BoxScore *BoxScore        `json:"box_score"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*r = RawGame{
		GameID:     envelopeString(env, GameIDKeys),
		HomeTeamID: envelopeString(env, HomeTeamIDKeys),
		AwayTeamID: envelopeString(env, AwayTeamIDKeys),
		Starters:   body.Starters,
		Events:     body.Events,
		BoxScore:   body.BoxScore,
	}
	return nil
}

// envelopeString returns the first alias holding a string or number.
func envelopeString(env map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := env[k]
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	return ""
}
