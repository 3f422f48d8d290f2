package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/pkg/metrics"
)

// per100 scales points per possession to a rating.
const per100 = 100.0

// Game returns the processing state of one game.
func (s *SQLStore) Game(ctx context.Context, gameID string) (GameRecord, error) {
	return s.game(ctx, s.db, gameID)
}

// Possessions lists possessions of committed games ordered by game and number.
// Team and lineup filters match either side of the ball.
func (s *SQLStore) Possessions(ctx context.Context, f Filter) ([]model.Possession, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	defer observe("possessions", time.Now())

	var c clause
	f.possessionRange(&c, "p")
	if f.TeamID != "" {
		c.add("(p.offensive_team_id = ? OR p.defensive_team_id = ?)", f.TeamID, f.TeamID)
	}
	if f.LineupHash != "" {
		c.add("(p.offensive_lineup_hash = ? OR p.defensive_lineup_hash = ?)", f.LineupHash, f.LineupHash)
	}
	if f.PlayerID != "" {
		c.add(`EXISTS (SELECT 1 FROM player_facts pf
			WHERE pf.game_id = p.game_id AND pf.sequence_number = p.start_sequence_number AND pf.player_id = ?)`, f.PlayerID)
	}

	query := `
		SELECT p.game_id, p.possession_number, p.period, p.start_sequence_number, p.end_sequence_number,
		       p.offensive_team_id, p.defensive_team_id, p.outcome, p.points_scored, p.offensive_rebounds,
		       p.offensive_lineup_hash, p.defensive_lineup_hash
		FROM possessions p` + c.where("WHERE") + `
		ORDER BY p.game_id, p.possession_number` + f.limit()

	rows, err := s.db.QueryContext(ctx, s.rebind(query), c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query possessions: %w", err)
	}
	defer rows.Close()

	out := []model.Possession{}
	for rows.Next() {
		var p model.Possession
		var outcome string
		if err := rows.Scan(
			&p.GameID, &p.Number, &p.Period, &p.StartSeq, &p.EndSeq,
			&p.OffenseTeamID, &p.DefenseTeamID, &outcome, &p.Points, &p.OffensiveRebounds,
			&p.OffensiveLineupHash, &p.DefensiveLineupHash,
		); err != nil {
			return nil, fmt.Errorf("failed to scan possession: %w", err)
		}
		p.Outcome = model.Outcome(outcome)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating possessions: %w", err)
	}
	return out, nil
}

// LineupRatings computes offensive, defensive and net rating per team lineup.
// Each side is aggregated once in its own CTE and the two are joined.
func (s *SQLStore) LineupRatings(ctx context.Context, f Filter) ([]types.LineupRating, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	defer observe("lineup_ratings", time.Now())

	var off, def, outer clause
	f.possessionRange(&off, "p")
	f.possessionRange(&def, "p")
	if f.TeamID != "" {
		outer.add("k.team_id = ?", f.TeamID)
	}
	if f.LineupHash != "" {
		outer.add("k.lineup_hash = ?", f.LineupHash)
	}
	off.add("p.offensive_lineup_hash <> ''")
	def.add("p.defensive_lineup_hash <> ''")

	query := `
		WITH off AS (
			SELECT p.offensive_team_id AS team_id, p.offensive_lineup_hash AS lineup_hash,
			       COUNT(*) AS poss, SUM(p.points_scored) AS pts
			FROM possessions p` + off.where("WHERE") + `
			GROUP BY p.offensive_team_id, p.offensive_lineup_hash
		), def AS (
			SELECT p.defensive_team_id AS team_id, p.defensive_lineup_hash AS lineup_hash,
			       COUNT(*) AS poss, SUM(p.points_scored) AS pts
			FROM possessions p` + def.where("WHERE") + `
			GROUP BY p.defensive_team_id, p.defensive_lineup_hash
		), k AS (
			SELECT team_id, lineup_hash FROM off
			UNION
			SELECT team_id, lineup_hash FROM def
		)
		SELECT k.team_id, k.lineup_hash,
		       COALESCE(o.poss, 0), COALESCE(o.pts, 0),
		       COALESCE(d.poss, 0), COALESCE(d.pts, 0)
		FROM k
		LEFT JOIN off o ON o.team_id = k.team_id AND o.lineup_hash = k.lineup_hash
		LEFT JOIN def d ON d.team_id = k.team_id AND d.lineup_hash = k.lineup_hash` + outer.where("WHERE") + `
		ORDER BY k.team_id, k.lineup_hash` + f.limit()

	args := append(append(append([]any{}, off.args...), def.args...), outer.args...)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineup ratings: %w", err)
	}
	defer rows.Close()

	out := []types.LineupRating{}
	for rows.Next() {
		var r types.LineupRating
		var offPoss, offPts, defPoss, defPts int64
		if err := rows.Scan(&r.TeamID, &r.LineupHash, &offPoss, &offPts, &defPoss, &defPts); err != nil {
			return nil, fmt.Errorf("failed to scan lineup rating: %w", err)
		}
		r.OffensivePossessions = int(offPoss)
		r.PointsFor = int(offPts)
		r.DefensivePossessions = int(defPoss)
		r.PointsAgainst = int(defPts)
		r.OffensiveRating = rating(offPts, offPoss)
		r.DefensiveRating = rating(defPts, defPoss)
		r.NetRating = r.OffensiveRating - r.DefensiveRating
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineup ratings: %w", err)
	}
	return out, nil
}

// PlayerOnOff compares a team's net points per 100 possessions with each
// player on and off court, over the games the player appeared in. A player is
// on court for a possession when present at its first event. The lineup hash
// filter does not apply.
func (s *SQLStore) PlayerOnOff(ctx context.Context, f Filter) ([]types.PlayerOnOff, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	defer observe("player_on_off", time.Now())

	var on, team clause
	f.possessionRange(&on, "p")
	f.possessionRange(&team, "p")
	if f.PlayerID != "" {
		on.add("pf.player_id = ?", f.PlayerID)
	}
	if f.TeamID != "" {
		on.add("pf.team_id = ?", f.TeamID)
		team.add("t.team_id = ?", f.TeamID)
	}

	query := `
		WITH sides AS (
			SELECT game_id, home_team_id AS team_id FROM games
			UNION ALL
			SELECT game_id, away_team_id AS team_id FROM games
		), on_court AS (
			SELECT p.game_id, pf.player_id, pf.team_id, COUNT(*) AS poss,
			       SUM(CASE WHEN p.offensive_team_id = pf.team_id THEN p.points_scored ELSE -p.points_scored END) AS net
			FROM possessions p
			JOIN player_facts pf ON pf.game_id = p.game_id AND pf.sequence_number = p.start_sequence_number` + on.where("WHERE") + `
			GROUP BY p.game_id, pf.player_id, pf.team_id
		), team_totals AS (
			SELECT p.game_id, t.team_id, COUNT(*) AS poss,
			       SUM(CASE WHEN p.offensive_team_id = t.team_id THEN p.points_scored ELSE -p.points_scored END) AS net
			FROM possessions p
			JOIN sides t ON t.game_id = p.game_id` + team.where("WHERE") + `
			GROUP BY p.game_id, t.team_id
		)
		SELECT o.player_id, o.team_id,
		       SUM(o.poss), SUM(o.net),
		       SUM(tt.poss - o.poss), SUM(tt.net - o.net)
		FROM on_court o
		JOIN team_totals tt ON tt.game_id = o.game_id AND tt.team_id = o.team_id
		GROUP BY o.player_id, o.team_id
		ORDER BY o.team_id, o.player_id` + f.limit()

	args := append(append([]any{}, on.args...), team.args...)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query player on/off: %w", err)
	}
	defer rows.Close()

	out := []types.PlayerOnOff{}
	for rows.Next() {
		var r types.PlayerOnOff
		var onPoss, onNet, offPoss, offNet int64
		if err := rows.Scan(&r.PlayerID, &r.TeamID, &onPoss, &onNet, &offPoss, &offNet); err != nil {
			return nil, fmt.Errorf("failed to scan player on/off: %w", err)
		}
		r.OnPossessions = int(onPoss)
		r.OffPossessions = int(offPoss)
		r.OnNetRating = rating(onNet, onPoss)
		r.OffNetRating = rating(offNet, offPoss)
		r.OnOffDifference = r.OnNetRating - r.OffNetRating
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player on/off: %w", err)
	}
	return out, nil
}

// ValidationResults lists Dean Oliver cross-check rows.
func (s *SQLStore) ValidationResults(ctx context.Context, f Filter) ([]model.ValidationResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	defer observe("validation_results", time.Now())

	var c clause
	committedOnly(&c, "v")
	if f.GameID != "" {
		c.add("v.game_id = ?", f.GameID)
	}
	if f.FailedOnly {
		c.add("v.pass = ?", false)
	}

	query := `
		SELECT v.game_id, v.detected_possession_count, v.estimated_possession_count,
		       v.deviation_pct, v.tolerance_pct, v.pass, v.derived_box_score
		FROM validation_results v` + c.where("WHERE") + `
		ORDER BY v.game_id` + f.limit()

	rows, err := s.db.QueryContext(ctx, s.rebind(query), c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation results: %w", err)
	}
	defer rows.Close()

	out := []model.ValidationResult{}
	for rows.Next() {
		var v model.ValidationResult
		if err := rows.Scan(&v.GameID, &v.Detected, &v.Estimated, &v.DeviationPct, &v.TolerancePct, &v.Pass, &v.Derived); err != nil {
			return nil, fmt.Errorf("failed to scan validation result: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation results: %w", err)
	}
	return out, nil
}

func rating(points, possessions int64) float64 {
	if possessions == 0 {
		return 0
	}
	return per100 * float64(points) / float64(possessions)
}

func observe(view string, start time.Time) {
	metrics.RecordStoreQueryLatency(view, float64(time.Since(start).Microseconds())/1000)
}
