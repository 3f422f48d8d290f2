// Package possession partitions a game's canonical events into possessions.
package possession

import (
	"fmt"

	"github.com/okian/courtside/internal/domain/model"
)

// State is the detector's position in the possession lifecycle.
type State int

// Detector states.
const (
	AwaitingStart State = iota
	InPossession
	Ending
)

func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting_possession_start"
	case InPossession:
		return "in_possession"
	case Ending:
		return "possession_ending"
	}
	return "unknown"
}

// Rules recorded on detector faults.
const (
	RuleControlWithoutBoundary = "control_without_boundary"
	RuleMissingRebound         = "missing_rebound"
	RuleUnexpectedOffense      = "unexpected_offense"
	RuleJumpBallTieBreak       = "jump_ball_tie_break"
	RuleScorelessOutcome       = "points_on_scoreless_outcome"
	RulePointsOutOfRange       = "points_out_of_range"
	RulePeriodWithoutEnd       = "period_changed_without_end"
	RuleGameWithoutEnd         = "game_ended_without_period_end"
)

// MaxPoints is the most a single possession can score without a fault.
const MaxPoints = 4

// Continuation marks an offensive rebound that kept a possession alive.
type Continuation struct {
	PossessionNumber int
	Seq              int64
}

// Result is the detector output for one game.
type Result struct {
	Possessions   []model.Possession
	Continuations []Continuation
	Faults        []model.Fault
	Unreliable    bool
}

type ending int

const (
	endNone ending = iota
	endMade        // made field goal, and-one window open
	endMiss        // missed shot or final free throw, waiting for the rebound
)

type jumpTick struct {
	winner string
	until  int64
}

type detector struct {
	game   model.Game
	events []model.Event
	res    Result

	state    State
	ending   ending
	cur      *model.Possession
	period   int
	gapStart int64
	expected string

	lastAbsorbed int64
	andOne       bool
	madeFG       bool
	sinceJump    bool
	jump         *jumpTick
}

// Detect runs the possession state machine over a normalized game.
// It never fails; recoverable inconsistencies are returned as faults.
func Detect(g model.Game) Result {
	d := &detector{game: g, events: g.Events}
	for i := range d.events {
		d.step(i)
	}
	d.finish()
	return d.res
}

func (d *detector) step(i int) {
	e := d.events[i]
	if d.jump != nil && e.Seq > d.jump.until {
		d.jump = nil
	}
	if e.Period != d.period {
		if d.period != 0 {
			d.breakPeriod(d.events[i-1].Seq, e.Seq, RulePeriodWithoutEnd)
		}
		d.period = e.Period
		d.gapStart = e.Seq
		d.expected = ""
	}

	switch e.Type {
	case model.EventPeriodStart:
		if d.state != AwaitingStart {
			d.breakPeriod(e.Seq-1, e.Seq, RulePeriodWithoutEnd)
		}
		if !d.periodHasPossession() {
			d.gapStart = e.Seq + 1
		}
		d.expected = ""
		return
	case model.EventPeriodEnd:
		switch {
		case d.state == Ending && d.ending == endMade:
			d.close(d.lastAbsorbed, model.OutcomeMadeShot)
		case d.state != AwaitingStart:
			d.close(e.Seq, model.OutcomeEndOfPeriod)
		}
		// A late event of the same period opens a possession at gapStart,
		// so the period_end stays inside the possession chain.
		d.expected = ""
		return
	case model.EventJumpBall:
		d.jumpBall(i)
		return
	}

	switch d.state {
	case AwaitingStart:
		d.awaiting(i)
	case InPossession:
		d.inPossession(i)
	case Ending:
		if d.ending == endMade {
			d.endingMade(i)
		} else {
			d.endingMiss(i)
		}
	}
}

func (d *detector) awaiting(i int) {
	e := d.events[i]
	offensiveFoul := e.Type == model.EventFoul && d.expected != "" && e.TeamID == d.expected &&
		!e.Foul.Shooting && !e.Foul.Technical
	if !e.IsControl() && !offensiveFoul {
		return
	}
	if !offensiveFoul && d.expected != "" && e.TeamID != d.expected && !d.sinceJump {
		d.fault(model.ErrTerminationAmbiguity, e.Seq, RuleUnexpectedOffense,
			fmt.Sprintf("expected %s to start the possession, got %s", d.expected, e.TeamID))
	}
	d.open(e.TeamID)
	d.inPossession(i)
}

func (d *detector) inPossession(i int) {
	e := d.events[i]
	if e.IsControl() && e.TeamID != d.cur.OffenseTeamID {
		if d.inJumpTick(e) {
			return
		}
		d.switchOffense(e)
	}
	offense := d.cur.OffenseTeamID
	if e.IsControl() {
		d.sinceJump = false
	}

	switch e.Type {
	case model.EventMadeShot:
		d.cur.Points += e.Points()
		d.state, d.ending = Ending, endMade
		d.lastAbsorbed = e.Seq
		d.madeFG = true
		d.andOne = false
	case model.EventMissedShot:
		d.state, d.ending = Ending, endMiss
	case model.EventTurnover:
		d.close(e.Seq, model.OutcomeTurnover)
	case model.EventFreeThrow:
		if e.FreeThrow.Technical || e.TeamID != offense {
			return
		}
		d.cur.Points += e.Points()
		if !d.finalFreeThrow(i) {
			return
		}
		if e.FreeThrow.Made {
			d.close(e.Seq, model.OutcomeMadeShot)
		} else {
			d.state, d.ending = Ending, endMiss
		}
	case model.EventFoul:
		if d.isResetFoul(i, offense) {
			d.close(e.Seq, model.OutcomeNonShootingFoulReset)
		}
	}
}

// endingMade absorbs the and-one window after a made field goal: a defensive
// foul, the shooter's free throws, and stoppages while those are pending.
func (d *detector) endingMade(i int) {
	e := d.events[i]
	offense, defense := d.cur.OffenseTeamID, d.cur.DefenseTeamID

	switch {
	case e.Type == model.EventFoul && e.TeamID == defense && !e.Foul.Technical &&
		(e.Foul.Shooting || d.freeThrowFollows(i, offense)):
		d.andOne = true
		d.lastAbsorbed = e.Seq
	case e.Type == model.EventFreeThrow && !e.FreeThrow.Technical && e.TeamID == offense:
		d.andOne = true
		d.lastAbsorbed = e.Seq
		d.cur.Points += e.Points()
		if !d.finalFreeThrow(i) {
			return
		}
		if e.FreeThrow.Made {
			d.close(e.Seq, model.OutcomeMadeShot)
		} else {
			d.ending = endMiss
		}
	case isStoppage(e) && (d.andOne || d.andOneFollows(i)):
		d.lastAbsorbed = e.Seq
	default:
		d.close(d.lastAbsorbed, model.OutcomeMadeShot)
		d.awaiting(i)
	}
}

// endingMiss waits for the rebound that decides whether the possession continues.
func (d *detector) endingMiss(i int) {
	e := d.events[i]
	offense := d.cur.OffenseTeamID

	switch {
	case e.Type == model.EventRebound && e.TeamID == offense:
		d.cur.OffensiveRebounds++
		d.res.Continuations = append(d.res.Continuations, Continuation{PossessionNumber: d.cur.Number, Seq: e.Seq})
		d.state, d.ending = InPossession, endNone
		d.madeFG = false
	case e.Type == model.EventRebound && e.TeamID != "":
		d.close(e.Seq-1, d.lostOutcome())
		d.open(e.TeamID)
	case e.IsControl() && e.TeamID == offense:
		d.state, d.ending = InPossession, endNone
		d.madeFG = false
		d.inPossession(i)
	case e.IsControl():
		if d.inJumpTick(e) {
			return
		}
		d.fault(model.ErrTerminationAmbiguity, e.Seq, RuleMissingRebound,
			fmt.Sprintf("%s acted after a %s miss without a recorded rebound", e.TeamID, offense))
		d.close(e.Seq-1, d.lostOutcome())
		d.open(e.TeamID)
		d.inPossession(i)
	case e.Type == model.EventFoul && d.isResetFoul(i, offense):
		d.close(e.Seq, model.OutcomeNonShootingFoulReset)
	}
}

// jumpBall hands the ball to the team that controls the ensuing tick.
func (d *detector) jumpBall(i int) {
	e := d.events[i]
	winner, until, contested := d.scanJump(i)
	d.sinceJump = true
	if winner == "" {
		return
	}
	d.jump = &jumpTick{winner: winner, until: until}
	if contested {
		d.fault(model.ErrTerminationAmbiguity, e.Seq, RuleJumpBallTieBreak,
			fmt.Sprintf("both teams acted after the jump ball; awarded to %s", winner))
	}

	if d.state == Ending && d.ending == endMade {
		d.close(d.lastAbsorbed, model.OutcomeMadeShot)
	}
	switch {
	case d.state == AwaitingStart:
		d.expected = winner
		d.open(winner)
	case winner == d.cur.OffenseTeamID:
		d.state, d.ending = InPossession, endNone
	default:
		outcome := model.OutcomeTurnover
		if d.state == Ending {
			outcome = d.lostOutcome()
		}
		d.close(e.Seq, outcome)
		d.open(winner)
	}
}

// scanJump ranks the first tick after a jump ball: rebound > foul > shot.
// A foul gives the ball to the fouler's opponent.
func (d *detector) scanJump(i int) (string, int64, bool) {
	j := d.nextRelevant(i)
	if j < 0 {
		return "", 0, false
	}
	tick := d.events[j]
	winner, best := "", 0
	teams := map[string]struct{}{}
	var until int64
	for k := j; k < len(d.events) && d.events[k].SameTick(tick); k++ {
		ev := d.events[k]
		until = ev.Seq
		team, rank := "", 0
		switch {
		case ev.Type == model.EventRebound && ev.TeamID != "":
			team, rank = ev.TeamID, 3
		case ev.Type == model.EventFoul && !ev.Foul.Technical && ev.TeamID != "":
			team, rank = d.game.Opponent(ev.TeamID), 2
		case ev.IsControl():
			team, rank = ev.TeamID, 1
		}
		if team == "" {
			continue
		}
		teams[team] = struct{}{}
		if rank > best {
			winner, best = team, rank
		}
	}
	return winner, until, len(teams) > 1
}

// inJumpTick reports whether e is a non-scoring action by the team that lost
// the jump-ball tie-break; those events stay with the winner's possession.
func (d *detector) inJumpTick(e model.Event) bool {
	return d.jump != nil && e.Seq <= d.jump.until && e.TeamID != d.jump.winner && e.Points() == 0
}

// switchOffense closes the open possession when the other team shows control
// without a recorded boundary.
func (d *detector) switchOffense(e model.Event) {
	if e.Seq-1 < d.cur.StartSeq {
		d.cur.OffenseTeamID = e.TeamID
		d.cur.DefenseTeamID = d.game.Opponent(e.TeamID)
		return
	}
	if !d.sinceJump {
		d.fault(model.ErrTerminationAmbiguity, e.Seq, RuleControlWithoutBoundary,
			fmt.Sprintf("%s acted during a %s possession", e.TeamID, d.cur.OffenseTeamID))
	}
	d.close(e.Seq-1, model.OutcomeTurnover)
	d.open(e.TeamID)
}

func (d *detector) open(team string) {
	d.cur = &model.Possession{
		GameID:        d.game.ID,
		Number:        len(d.res.Possessions) + 1,
		Period:        d.period,
		StartSeq:      d.gapStart,
		OffenseTeamID: team,
		DefenseTeamID: d.game.Opponent(team),
	}
	d.state, d.ending = InPossession, endNone
	d.andOne, d.madeFG = false, false
}

func (d *detector) close(end int64, outcome model.Outcome) {
	p := *d.cur
	p.EndSeq = end
	p.Outcome = outcome
	if p.Points > 0 && (outcome == model.OutcomeTurnover || outcome == model.OutcomeNonShootingFoulReset) {
		d.fault(model.ErrTerminationAmbiguity, end, RuleScorelessOutcome,
			fmt.Sprintf("%s possession scored %d points; recorded as made_shot", outcome, p.Points))
		p.Outcome = model.OutcomeMadeShot
	}
	if p.Points > MaxPoints {
		d.fault(model.ErrTerminationAmbiguity, end, RulePointsOutOfRange,
			fmt.Sprintf("possession %d scored %d points", p.Number, p.Points))
	}
	d.res.Possessions = append(d.res.Possessions, p)

	d.expected = ""
	if outcome != model.OutcomeEndOfPeriod {
		d.expected = p.DefenseTeamID
	}
	d.cur = nil
	d.state, d.ending = AwaitingStart, endNone
	d.gapStart = end + 1
	d.andOne, d.madeFG, d.sinceJump = false, false, false
}

// breakPeriod closes whatever is open when a period boundary is crossed
// without a period_end event.
func (d *detector) breakPeriod(last, at int64, rule string) {
	switch {
	case d.state == AwaitingStart:
		return
	case d.ending == endMade:
		d.close(d.lastAbsorbed, model.OutcomeMadeShot)
		return
	}
	d.res.Unreliable = true
	d.fault(model.ErrUnterminatedPossession, at, rule,
		fmt.Sprintf("possession %d force-closed at %d", d.cur.Number, last))
	d.close(last, model.OutcomeEndOfPeriod)
}

// periodHasPossession reports whether a possession of the current period
// has already been closed.
func (d *detector) periodHasPossession() bool {
	n := len(d.res.Possessions)
	return n > 0 && d.res.Possessions[n-1].Period == d.period
}

func (d *detector) finish() {
	if d.state == AwaitingStart || len(d.events) == 0 {
		return
	}
	last := d.events[len(d.events)-1].Seq
	d.breakPeriod(last, last, RuleGameWithoutEnd)
}

// lostOutcome is the outcome when the defense secures a missed shot.
// An and-one whose free throw is missed still counts as a made shot unless
// the offense rebounded it and missed again.
func (d *detector) lostOutcome() model.Outcome {
	if d.madeFG {
		return model.OutcomeMadeShot
	}
	return model.OutcomeMissedReboundLost
}

// finalFreeThrow reports whether the free throw ends its trip. Without
// numbering, a trip ends when the team's next action is not another free throw.
func (d *detector) finalFreeThrow(i int) bool {
	e := d.events[i]
	if e.FreeThrow.Total > 0 {
		return e.FreeThrow.Final()
	}
	j := d.nextRelevant(i)
	if j < 0 {
		return true
	}
	n := d.events[j]
	return !(n.Type == model.EventFreeThrow && !n.FreeThrow.Technical && n.TeamID == e.TeamID)
}

// isResetFoul reports a non-shooting offensive foul that is not immediately
// recorded as the offense's turnover.
func (d *detector) isResetFoul(i int, offense string) bool {
	e := d.events[i]
	if e.TeamID != offense || e.Foul.Shooting || e.Foul.Technical {
		return false
	}
	j := d.nextRelevant(i)
	return j < 0 || d.events[j].Type != model.EventTurnover || d.events[j].TeamID != offense
}

func (d *detector) freeThrowFollows(i int, team string) bool {
	j := d.nextRelevant(i)
	return j >= 0 && d.events[j].Type == model.EventFreeThrow && !d.events[j].FreeThrow.Technical && d.events[j].TeamID == team
}

func (d *detector) andOneFollows(i int) bool {
	j := d.nextRelevant(i)
	if j < 0 {
		return false
	}
	n := d.events[j]
	switch {
	case n.Type == model.EventFoul && n.TeamID == d.cur.DefenseTeamID && !n.Foul.Technical:
		return n.Foul.Shooting || d.freeThrowFollows(j, d.cur.OffenseTeamID)
	case n.Type == model.EventFreeThrow && !n.FreeThrow.Technical:
		return n.TeamID == d.cur.OffenseTeamID
	}
	return false
}

// nextRelevant returns the index of the next event in the same period that
// is not a substitution or timeout, or -1.
func (d *detector) nextRelevant(i int) int {
	for j := i + 1; j < len(d.events) && d.events[j].Period == d.events[i].Period; j++ {
		if !isStoppage(d.events[j]) {
			return j
		}
	}
	return -1
}

func (d *detector) fault(kind error, seq int64, rule, detail string) {
	d.res.Faults = append(d.res.Faults, model.Fault{Kind: kind, GameID: d.game.ID, Seq: seq, Rule: rule, Detail: detail})
}

func isStoppage(e model.Event) bool {
	switch e.Type {
	case model.EventSubstitutionIn, model.EventSubstitutionOut, model.EventTimeout:
		return true
	}
	return false
}
