package repository

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/okian/courtside/internal/domain/model"
)

// Filter narrows an aggregation view. Zero values mean "no filter".
type Filter struct {
	GameID        string `json:"game_id" validate:"omitempty,max=128"`
	TeamID        string `json:"team_id" validate:"omitempty,max=128"`
	LineupHash    string `json:"lineup_hash" validate:"omitempty,hexadecimal,max=16"`
	PlayerID      string `json:"player_id" validate:"omitempty,max=128"`
	MinPossession int    `json:"min_possession" validate:"gte=0"`
	MaxPossession int    `json:"max_possession" validate:"omitempty,gtefield=MinPossession"`
	FailedOnly    bool   `json:"failed_only"`
	Limit         int    `json:"limit" validate:"gte=0,lte=10000"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func filterValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the filter bounds.
func (f Filter) Validate() error {
	if err := filterValidator().Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return nil
}

// clause accumulates WHERE predicates with positional arguments.
type clause struct {
	preds []string
	args  []any
}

func (c *clause) add(pred string, args ...any) {
	c.preds = append(c.preds, pred)
	c.args = append(c.args, args...)
}

// where renders the predicates joined by AND, prefixed with the keyword.
func (c *clause) where(keyword string) string {
	if len(c.preds) == 0 {
		return ""
	}
	return " " + keyword + " " + strings.Join(c.preds, " AND ")
}

// committedOnly restricts alias to rows of games whose status is COMMITTED.
// Rows left behind by a later failed or quarantined run stay hidden.
func committedOnly(c *clause, alias string) {
	c.add(`EXISTS (SELECT 1 FROM games g WHERE g.game_id = `+alias+`.game_id AND g.status = ?)`,
		string(model.StatusCommitted))
}

// possessionRange adds the committed, game and possession-number predicates
// for alias p.
func (f Filter) possessionRange(c *clause, alias string) {
	committedOnly(c, alias)
	if f.GameID != "" {
		c.add(alias+".game_id = ?", f.GameID)
	}
	if f.MinPossession > 0 {
		c.add(alias+".possession_number >= ?", f.MinPossession)
	}
	if f.MaxPossession > 0 {
		c.add(alias+".possession_number <= ?", f.MaxPossession)
	}
}

func (f Filter) limit() string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}
