package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// factTables lists the per-game tables in delete order.
var factTables = []string{
	"validation_results",
	"player_facts",
	"event_facts",
	"stints",
	"lineup_snapshots",
	"possessions",
}

// WriteGame commits all fact rows of one game in a single transaction.
// Existing rows of the game are replaced.
func (s *SQLStore) WriteGame(ctx context.Context, facts model.GameFacts) error {
	if facts.GameID == "" {
		return fmt.Errorf("%w: empty game id", ErrConstraint)
	}

	start := time.Now()
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.commitGame(ctx, facts)
	})
	metrics.RecordStoreCommitLatency(float64(time.Since(start).Milliseconds()))
	if err == nil {
		return nil
	}

	metrics.RecordStoreRollback()
	metrics.RecordErrorByComponent("store", "commit")
	s.log.Error(ctx, "game rolled back",
		logger.String("game_id", facts.GameID),
		logger.Error(err))

	// the status row lives outside the rolled back transaction
	if ctx.Err() == nil {
		if mErr := s.MarkGame(ctx, facts.GameID, model.StatusFailed, err.Error()); mErr != nil {
			s.log.Error(ctx, "failed to mark game", logger.String("game_id", facts.GameID), logger.Error(mErr))
		}
	}
	return err
}

func (s *SQLStore) commitGame(ctx context.Context, facts model.GameFacts) error {
	if err := checkFacts(facts); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, table := range factTables {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE game_id = ?"), facts.GameID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := s.upsertGame(ctx, tx, GameRecord{
		GameID:     facts.GameID,
		HomeTeamID: facts.HomeTeamID,
		AwayTeamID: facts.AwayTeamID,
		Status:     model.StatusCommitted,
		Unreliable: facts.Unreliable,
		RunID:      facts.RunID,
		UpdatedAt:  s.now().UTC(),
	}); err != nil {
		return err
	}

	inserts := []struct {
		table string
		cols  []string
		rows  [][]any
	}{
		{"possessions", possessionCols, possessionRows(facts.Possessions)},
		{"lineup_snapshots", snapshotCols, snapshotRows(facts.Snapshots)},
		{"stints", stintCols, stintRows(facts.Stints)},
		{"event_facts", eventFactCols, eventFactRows(facts.EventFacts)},
		{"player_facts", playerFactCols, playerFactRows(facts.PlayerFacts)},
	}
	if facts.Validation != nil {
		inserts = append(inserts, struct {
			table string
			cols  []string
			rows  [][]any
		}{"validation_results", validationCols, validationRows(*facts.Validation)})
	}

	for _, in := range inserts {
		if err := s.insertBatches(ctx, tx, in.table, in.cols, in.rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, in := range inserts {
		metrics.RecordRowsWritten(in.table, len(in.rows))
	}
	return nil
}

// Bind-variable limits per statement.
const (
	maxParamsSQLite   = 32766
	maxParamsPostgres = 65535
)

// rowsPerStatement is batchSize capped so one statement stays within the
// driver's bind-variable limit.
func (s *SQLStore) rowsPerStatement(cols int) int {
	limit := maxParamsSQLite
	if s.driver == DriverPostgres {
		limit = maxParamsPostgres
	}
	return max(1, min(s.batchSize, limit/max(cols, 1)))
}

// insertBatches writes rows with multi-row INSERT statements of at most
// rowsPerStatement rows.
func (s *SQLStore) insertBatches(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]any) error {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	head := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES "
	step := s.rowsPerStatement(len(cols))

	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		chunk := rows[start:end]

		var b strings.Builder
		b.WriteString(head)
		args := make([]any, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(tuple)
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(b.String()), args...); err != nil {
			return fmt.Errorf("failed to insert %s rows %d-%d: %w", table, start, end-1, err)
		}
	}
	return nil
}

// MarkGame records a status for a game outside any fact transaction.
func (s *SQLStore) MarkGame(ctx context.Context, gameID string, status model.GameStatus, reason string) error {
	switch status {
	case model.StatusCommitted, model.StatusFailed, model.StatusQuarantined, model.StatusSkipped:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	rec, err := s.game(ctx, tx, gameID)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = GameRecord{GameID: gameID}
	case err != nil:
		return err
	}
	rec.Status = status
	rec.Reason = reason
	rec.UpdatedAt = s.now().UTC()

	if err := s.upsertGame(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) game(ctx context.Context, q querier, gameID string) (GameRecord, error) {
	var rec GameRecord
	var status string
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT game_id, home_team_id, away_team_id, status, unreliable, run_id, reason, updated_at
		FROM games WHERE game_id = ?`), gameID).Scan(
		&rec.GameID, &rec.HomeTeamID, &rec.AwayTeamID, &status,
		&rec.Unreliable, &rec.RunID, &rec.Reason, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GameRecord{}, fmt.Errorf("%w: %s", ErrNotFound, gameID)
	}
	if err != nil {
		return GameRecord{}, fmt.Errorf("failed to query game: %w", err)
	}
	rec.Status = model.GameStatus(status)
	return rec, nil
}

func (s *SQLStore) upsertGame(ctx context.Context, tx *sql.Tx, rec GameRecord) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO games (game_id, home_team_id, away_team_id, status, unreliable, run_id, reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (game_id) DO UPDATE SET
			home_team_id = excluded.home_team_id,
			away_team_id = excluded.away_team_id,
			status = excluded.status,
			unreliable = excluded.unreliable,
			run_id = excluded.run_id,
			reason = excluded.reason,
			updated_at = excluded.updated_at`),
		rec.GameID, rec.HomeTeamID, rec.AwayTeamID, string(rec.Status),
		rec.Unreliable, rec.RunID, rec.Reason, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

// checkFacts rejects rows that would break the invariants the views rely on.
func checkFacts(f model.GameFacts) error {
	violation := func(format string, args ...any) error {
		return fmt.Errorf("%w: game %s: %s", ErrConstraint, f.GameID, fmt.Sprintf(format, args...))
	}

	for _, s := range f.Snapshots {
		if !s.Distinct() {
			return violation("lineup at seq %d for team %s has duplicate or missing players", s.Seq, s.TeamID)
		}
		if s.Hash != model.LineupHash(s.Players[:]) {
			return violation("lineup hash mismatch at seq %d", s.Seq)
		}
	}

	for i, p := range f.Possessions {
		if p.Number != i+1 {
			return violation("possession %d out of order", p.Number)
		}
		if p.StartSeq > p.EndSeq {
			return violation("possession %d ends before it starts", p.Number)
		}
		if p.OffenseTeamID == "" || p.OffenseTeamID == p.DefenseTeamID {
			return violation("possession %d has invalid teams", p.Number)
		}
		if i > 0 {
			prev := f.Possessions[i-1]
			if p.StartSeq <= prev.EndSeq {
				return violation("possession %d overlaps possession %d", p.Number, prev.Number)
			}
			if p.Period == prev.Period && p.StartSeq != prev.EndSeq+1 {
				return violation("possession %d is not contiguous with possession %d", p.Number, prev.Number)
			}
		}
	}

	seen := make(map[string]struct{}, len(f.PlayerFacts))
	for _, pf := range f.PlayerFacts {
		k := fmt.Sprintf("%d|%s", pf.Seq, pf.PlayerID)
		if _, dup := seen[k]; dup {
			return violation("player %s appears twice at seq %d", pf.PlayerID, pf.Seq)
		}
		seen[k] = struct{}{}
	}
	return nil
}

var possessionCols = []string{
	"game_id", "possession_number", "period", "start_sequence_number", "end_sequence_number",
	"offensive_team_id", "defensive_team_id", "outcome", "points_scored", "offensive_rebounds",
	"offensive_lineup_hash", "defensive_lineup_hash",
}

func possessionRows(ps []model.Possession) [][]any {
	rows := make([][]any, len(ps))
	for i, p := range ps {
		rows[i] = []any{
			p.GameID, p.Number, p.Period, p.StartSeq, p.EndSeq,
			p.OffenseTeamID, p.DefenseTeamID, string(p.Outcome), p.Points, p.OffensiveRebounds,
			p.OffensiveLineupHash, p.DefensiveLineupHash,
		}
	}
	return rows
}

var snapshotCols = []string{
	"game_id", "sequence_number", "team_id",
	"player_1", "player_2", "player_3", "player_4", "player_5", "lineup_hash",
}

func snapshotRows(ss []model.LineupSnapshot) [][]any {
	rows := make([][]any, len(ss))
	for i, s := range ss {
		rows[i] = []any{
			s.GameID, s.Seq, s.TeamID,
			s.Players[0], s.Players[1], s.Players[2], s.Players[3], s.Players[4], s.Hash,
		}
	}
	return rows
}

var stintCols = []string{
	"game_id", "player_id", "team_id", "stint_number", "start_sequence_number", "end_sequence_number", "plus_minus",
}

func stintRows(ss []model.Stint) [][]any {
	rows := make([][]any, len(ss))
	for i, s := range ss {
		var end sql.NullInt64
		if s.EndSeq != nil {
			end = sql.NullInt64{Int64: *s.EndSeq, Valid: true}
		}
		rows[i] = []any{s.GameID, s.PlayerID, s.TeamID, s.Number, s.StartSeq, end, s.PlusMinus}
	}
	return rows
}

var eventFactCols = []string{
	"game_id", "sequence_number", "period", "game_clock_seconds", "event_type", "possession_number",
	"offensive_team_id", "home_score", "away_score", "home_plus_minus", "home_lineup_hash", "away_lineup_hash",
}

func eventFactRows(fs []model.EventFact) [][]any {
	rows := make([][]any, len(fs))
	for i, f := range fs {
		rows[i] = []any{
			f.GameID, f.Seq, f.Period, f.ClockSeconds, string(f.Type), f.PossessionNumber,
			f.OffenseTeamID, f.HomeScore, f.AwayScore, f.HomePlusMinus, f.HomeLineupHash, f.AwayLineupHash,
		}
	}
	return rows
}

var playerFactCols = []string{
	"game_id", "sequence_number", "player_id", "team_id", "on_court", "stint_number", "plus_minus",
}

func playerFactRows(fs []model.PlayerFact) [][]any {
	rows := make([][]any, len(fs))
	for i, f := range fs {
		rows[i] = []any{f.GameID, f.Seq, f.PlayerID, f.TeamID, f.OnCourt, f.StintNumber, f.PlusMinus}
	}
	return rows
}

var validationCols = []string{
	"game_id", "detected_possession_count", "estimated_possession_count",
	"deviation_pct", "tolerance_pct", "pass", "derived_box_score",
}

func validationRows(v model.ValidationResult) [][]any {
	return [][]any{{v.GameID, v.Detected, v.Estimated, v.DeviationPct, v.TolerancePct, v.Pass, v.Derived}}
}
