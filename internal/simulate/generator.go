// Package simulate produces deterministic synthetic games and feeds them to
// a directory or a running service.
package simulate

import (
	"fmt"
	"math/rand/v2"

	"github.com/okian/courtside/internal/domain/model"
)

// Generator builds play-by-play whose possessions, lineups and box score
// are consistent with each other.
type Generator struct {
	seed      uint64
	periods   int
	perPeriod int
	roster    int
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the seed every game is derived from.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithPeriods sets the number of periods per game.
func WithPeriods(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.periods = n
		}
	}
}

// WithPossessionsPerPeriod sets how many possessions each period holds.
func WithPossessionsPerPeriod(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.perPeriod = n
		}
	}
}

// WithRosterSize sets the players per team. Five means no substitutions.
func WithRosterSize(n int) Option {
	return func(g *Generator) {
		if n >= model.LineupSize {
			g.roster = n
		}
	}
}

// NewGenerator creates a generator with default game shape.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		periods:   DefaultPeriods,
		perPeriod: DefaultPerPeriod,
		roster:    DefaultRosterSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Game returns the n-th game of the generator's seed. The same (seed, n)
// always yields the same game.
func (g *Generator) Game(n int) (model.RawGame, Summary) {
	rng := rand.New(rand.NewPCG(g.seed, uint64(n))) //nolint:gosec // deterministic simulation, not security

	hi := rng.IntN(len(league))
	ai := (hi + 1 + rng.IntN(len(league)-1)) % len(league)
	home, away := league[hi], league[ai]

	b := &builder{
		rng:       rng,
		perPeriod: g.perPeriod,
		id:        fmt.Sprintf("sim-%d-%05d", g.seed, n),
		home:      home,
		away:      away,
		onCourt:   map[string][]string{},
		bench:     map[string][]string{},
		totals:    map[string]*model.TeamTotals{home: {TeamID: home}, away: {TeamID: away}},
	}
	b.sum = Summary{GameID: b.id, HomeTeamID: home, AwayTeamID: away, Points: map[string]int{home: 0, away: 0}}

	var starters []model.StarterSet
	for _, team := range []string{home, away} {
		players := roster(team, g.roster)
		b.onCourt[team] = append([]string(nil), players[:model.LineupSize]...)
		b.bench[team] = append([]string(nil), players[model.LineupSize:]...)
		starters = append(starters, model.StarterSet{Period: 1, TeamID: team, Players: append([]string(nil), b.onCourt[team]...)})
	}

	for p := 1; p <= g.periods; p++ {
		b.playPeriod(p)
	}

	raw := model.RawGame{
		GameID:     b.id,
		HomeTeamID: home,
		AwayTeamID: away,
		Starters:   starters,
		Events:     b.events,
		BoxScore: &model.BoxScore{
			GameID: b.id,
			Teams:  []model.TeamTotals{*b.totals[home], *b.totals[away]},
		},
	}
	b.sum.Events = len(b.events)
	return raw, b.sum
}

func roster(team string, size int) []string {
	players := make([]string, size)
	for i := range players {
		players[i] = fmt.Sprintf("%s-%02d", team, i+1)
	}
	return players
}

type builder struct {
	rng       *rand.Rand
	perPeriod int
	id        string
	home      string
	away      string

	seq    int
	period int
	clock  int
	floor  int

	onCourt map[string][]string
	bench   map[string][]string
	totals  map[string]*model.TeamTotals
	events  []map[string]any
	sum     Summary
}

func (b *builder) playPeriod(p int) {
	b.period, b.clock, b.floor = p, PeriodSeconds, PeriodSeconds
	b.emit("period_start", "", "", nil)

	offense, defense := b.home, b.away
	if p%2 == 0 {
		offense, defense = defense, offense
	}

	span := PeriodSeconds / b.perPeriod
	live := false
	for k := 0; k < b.perPeriod; k++ {
		b.floor = max(PeriodSeconds-(k+1)*span, 0)
		if !live {
			b.deadBall()
		}
		last := k == b.perPeriod-1
		live = b.possession(offense, defense, last)
		b.sum.Possessions++
		offense, defense = defense, offense
	}

	b.clock, b.floor = 0, 0
	b.emit("period_end", "", "", nil)
}

// deadBall may add a substitution or a timeout between possessions.
func (b *builder) deadBall() {
	if b.rng.IntN(100) < substitutionPct {
		team := b.home
		if b.rng.IntN(2) == 1 {
			team = b.away
		}
		if len(b.bench[team]) > 0 {
			i, j := b.rng.IntN(model.LineupSize), b.rng.IntN(len(b.bench[team]))
			out, in := b.onCourt[team][i], b.bench[team][j]
			b.onCourt[team][i], b.bench[team][j] = in, out
			b.emit("substitution", team, "", map[string]any{"player_out": out, "player_in": in})
			b.sum.Substitutions++
		}
	}
	if b.rng.IntN(100) < timeoutPct {
		b.emit("timeout", b.home, "", nil)
	}
}

// possession plays one possession of offense and reports whether it ended
// on a live defensive rebound, which opens the next possession. The last
// possession of a period always ends on a dead ball.
func (b *builder) possession(offense, defense string, last bool) bool {
	shooter := b.player(offense)
	roll := b.rng.IntN(100)
	if last {
		roll %= weightMade + weightTurnover
		if roll >= weightMade {
			roll = weightMade + weightMissLost + weightPutback
		}
	}

	switch {
	case roll < weightMade:
		value := 2
		if b.rng.IntN(100) < threePointPct {
			value = 3
		}
		b.shot(offense, shooter, value, true)
		return false

	case roll < weightMade+weightMissLost:
		b.shot(offense, shooter, 2, false)
		b.rebound(defense, false)
		return true

	case roll < weightMade+weightMissLost+weightPutback:
		b.shot(offense, shooter, 2, false)
		b.rebound(offense, true)
		b.shot(offense, shooter, 2, true)
		return false

	case roll < weightMade+weightMissLost+weightPutback+weightTurnover:
		b.emit("turnover", offense, shooter, nil)
		b.totals[offense].TOV++
		return false

	case roll < weightMade+weightMissLost+weightPutback+weightTurnover+weightFreeThrows:
		b.emit("foul", defense, b.player(defense), map[string]any{"shooting": true})
		b.freeThrow(offense, shooter, 1, 2, b.rng.IntN(100) < freeThrowPct)
		final := b.rng.IntN(100) < freeThrowPct
		b.freeThrow(offense, shooter, 2, 2, final)
		if !final {
			b.rebound(defense, false)
			return true
		}
		return false

	default:
		b.shot(offense, shooter, 2, true)
		b.emit("foul", defense, b.player(defense), map[string]any{"shooting": true})
		b.freeThrow(offense, shooter, 1, 1, true)
		return false
	}
}

func (b *builder) shot(team, player string, value int, made bool) {
	typ := "missed_shot"
	if made {
		typ = "made_shot"
		b.sum.Points[team] += value
	}
	b.emit(typ, team, player, map[string]any{"shot_value": value})
	b.totals[team].FGA++
}

func (b *builder) freeThrow(team, player string, n, total int, made bool) {
	if made {
		b.sum.Points[team]++
	}
	b.emit("free_throw", team, player, map[string]any{"ft_number": n, "ft_total": total, "made": made})
	b.totals[team].FTA++
}

func (b *builder) rebound(team string, offensive bool) {
	b.emit("rebound", team, b.player(team), nil)
	if offensive {
		b.totals[team].ORB++
	}
}

func (b *builder) player(team string) string {
	return b.onCourt[team][b.rng.IntN(model.LineupSize)]
}

func (b *builder) emit(typ, team, player string, extra map[string]any) {
	b.seq++
	if b.clock > b.floor {
		b.clock = max(b.clock-1-b.rng.IntN(3), b.floor)
	}
	rec := map[string]any{
		"game_id":            b.id,
		"sequence_number":    b.seq,
		"period":             b.period,
		"game_clock_seconds": b.clock,
		"event_type":         typ,
	}
	if team != "" {
		rec["team_id"] = team
	}
	if player != "" {
		rec["player_id"] = player
	}
	for k, v := range extra {
		rec[k] = v
	}
	b.events = append(b.events, rec)
}
