// Package repository persists per-game fact rows and serves the read-only
// aggregation views built on them.
package repository

import (
	"context"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/types"
)

// GameRecord is the persisted processing state of one game.
type GameRecord struct {
	GameID     string           `json:"game_id"`
	HomeTeamID string           `json:"home_team_id"`
	AwayTeamID string           `json:"away_team_id"`
	Status     model.GameStatus `json:"status"`
	Unreliable bool             `json:"unreliable"`
	RunID      string           `json:"run_id"`
	Reason     string           `json:"reason,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Writer commits fact rows one game per transaction.
type Writer interface {
	// WriteGame replaces every fact row of the game atomically. On failure
	// nothing is committed and the game is marked FAILED.
	WriteGame(ctx context.Context, facts model.GameFacts) error

	// MarkGame records a status without touching fact rows.
	MarkGame(ctx context.Context, gameID string, status model.GameStatus, reason string) error
}

// Views are read-only aggregations over committed fact rows.
type Views interface {
	Game(ctx context.Context, gameID string) (GameRecord, error)
	Possessions(ctx context.Context, f Filter) ([]model.Possession, error)
	LineupRatings(ctx context.Context, f Filter) ([]types.LineupRating, error)
	PlayerOnOff(ctx context.Context, f Filter) ([]types.PlayerOnOff, error)
	ValidationResults(ctx context.Context, f Filter) ([]model.ValidationResult, error)
}

// Store provides read/write access to the fact store.
type Store interface {
	Writer
	Views
	Close() error
}
