// Package lineup tracks each team's on-court five through a game.
package lineup

import (
	"fmt"
	"sort"

	"github.com/okian/courtside/internal/domain/model"
)

// Rules recorded on tracker faults.
const (
	RuleSubOutAbsent    = "sub_out_absent"
	RuleSubInPresent    = "sub_in_present"
	RuleSubInFull       = "sub_in_full_lineup"
	RuleActorOffCourt   = "actor_off_court"
	RuleCardinality     = "lineup_cardinality"
	RuleStarterSize     = "starter_size"
	RuleMissingStarters = "missing_starters"
)

// Team is one team's on-court set.
type Team struct {
	ID      string
	OnCourt []string // sorted
	// LastConfirmed is the last sequence number each on-court player acted or entered at.
	LastConfirmed map[string]int64
	// Formed is set once the team first reaches five players.
	Formed bool
}

func (t Team) clone() Team {
	c := Team{ID: t.ID, Formed: t.Formed}
	c.OnCourt = append([]string(nil), t.OnCourt...)
	c.LastConfirmed = make(map[string]int64, len(t.LastConfirmed))
	for k, v := range t.LastConfirmed {
		c.LastConfirmed[k] = v
	}
	return c
}

// Has reports whether the player is on court.
func (t Team) Has(player string) bool {
	i := sort.SearchStrings(t.OnCourt, player)
	return i < len(t.OnCourt) && t.OnCourt[i] == player
}

func (t *Team) add(player string, seq int64) {
	if t.Has(player) {
		return
	}
	t.OnCourt = append(t.OnCourt, player)
	sort.Strings(t.OnCourt)
	t.LastConfirmed[player] = seq
	if len(t.OnCourt) == model.LineupSize {
		t.Formed = true
	}
}

func (t *Team) remove(player string) {
	i := sort.SearchStrings(t.OnCourt, player)
	if i < len(t.OnCourt) && t.OnCourt[i] == player {
		t.OnCourt = append(t.OnCourt[:i], t.OnCourt[i+1:]...)
		delete(t.LastConfirmed, player)
	}
}

// leastRecentlyConfirmed picks the eviction candidate; ties go to the lowest id.
func (t Team) leastRecentlyConfirmed() string {
	var pick string
	best := int64(-1)
	for _, p := range t.OnCourt {
		seen := t.LastConfirmed[p]
		if best < 0 || seen < best {
			pick, best = p, seen
		}
	}
	return pick
}

// State is the tracker's immutable per-step state. Step never mutates its input.
type State struct {
	GameID   string
	Period   int
	Started  bool
	Explicit bool
	Teams    map[string]Team

	starters []model.StarterSet
}

// NewState seeds the on-court sets for a game. Explicit period-one starters
// are used when the source provides them for both teams; otherwise the sets
// form from the first five distinct active players.
func NewState(g model.Game) (State, []model.Fault) {
	s := State{GameID: g.ID, Period: 1, Teams: map[string]Team{}, starters: g.Starters}
	for _, id := range []string{g.HomeTeamID, g.AwayTeamID} {
		if id != "" {
			s.Teams[id] = Team{ID: id, LastConfirmed: map[string]int64{}}
		}
	}

	var faults []model.Fault
	for id := range s.Teams {
		if _, ok := g.StartersFor(1, id); ok {
			s.Explicit = true
		}
	}
	if !s.Explicit {
		return s, nil
	}
	for _, id := range s.teamIDs() {
		players, ok := g.StartersFor(1, id)
		if !ok {
			faults = append(faults, s.fault(model.ErrSubstitutionConsistency, 0, RuleMissingStarters,
				fmt.Sprintf("no starters for team %s; inferring from activity", id)))
			continue
		}
		t := s.Teams[id]
		faults = append(faults, s.seed(&t, players, 0)...)
		s.Teams[id] = t
	}
	return s, faults
}

func (s State) clone() State {
	c := s
	c.Teams = make(map[string]Team, len(s.Teams))
	for k, t := range s.Teams {
		c.Teams[k] = t.clone()
	}
	return c
}

func (s State) teamIDs() []string {
	ids := make([]string, 0, len(s.Teams))
	for id := range s.Teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// seed replaces a team's set with an explicit starter list.
func (s State) seed(t *Team, players []string, seq int64) []model.Fault {
	t.OnCourt = nil
	t.LastConfirmed = map[string]int64{}
	for _, p := range players {
		if p != "" {
			t.add(p, seq)
		}
	}
	t.Formed = true
	if len(t.OnCourt) != model.LineupSize {
		return []model.Fault{s.fault(model.ErrLineupCardinality, seq, RuleStarterSize,
			fmt.Sprintf("team %s listed %d distinct starters", t.ID, len(t.OnCourt)))}
	}
	return nil
}

func (s State) fault(kind error, seq int64, rule, detail string) model.Fault {
	return model.Fault{Kind: kind, GameID: s.GameID, Seq: seq, Rule: rule, Detail: detail}
}

// Step applies one event and returns the next state. It is a pure function
// of its inputs.
func Step(s State, e model.Event) (State, []model.Fault) {
	n := s.clone()
	var faults []model.Fault

	if e.Type == model.EventPeriodStart || e.Period != n.Period {
		if e.Period > n.Period {
			n.Period = e.Period
		}
		for _, id := range n.teamIDs() {
			if players, ok := startersFor(n.starters, n.Period, id); ok && n.Period > 1 {
				t := n.Teams[id]
				faults = append(faults, n.seed(&t, players, e.Seq)...)
				n.Teams[id] = t
			}
		}
	}
	if startsPlay(e) {
		n.Started = true
	}

	t, ok := n.Teams[e.TeamID]
	if !ok {
		return n, faults
	}

	switch e.Type {
	case model.EventSubstitutionOut:
		if e.PlayerID != "" {
			if t.Has(e.PlayerID) {
				t.remove(e.PlayerID)
			} else if t.Formed {
				faults = append(faults, n.fault(model.ErrSubstitutionConsistency, e.Seq, RuleSubOutAbsent,
					fmt.Sprintf("player %s of %s is not on court", e.PlayerID, t.ID)))
			}
		}
		if in := e.Sub.IncomingPlayerID; in != "" {
			faults = append(faults, n.enter(&t, in, e.Seq)...)
		}
	case model.EventSubstitutionIn:
		if e.PlayerID != "" {
			faults = append(faults, n.enter(&t, e.PlayerID, e.Seq)...)
		}
	case model.EventTimeout, model.EventPeriodStart, model.EventPeriodEnd:
	default:
		if e.PlayerID == "" || (e.Type == model.EventFoul && e.Foul.Technical) {
			break
		}
		switch {
		case t.Has(e.PlayerID):
			t.LastConfirmed[e.PlayerID] = e.Seq
		case !t.Formed || len(t.OnCourt) < model.LineupSize:
			t.add(e.PlayerID, e.Seq)
		default:
			out := t.leastRecentlyConfirmed()
			faults = append(faults, n.fault(model.ErrSubstitutionConsistency, e.Seq, RuleActorOffCourt,
				fmt.Sprintf("player %s of %s acted off court; replaced %s", e.PlayerID, t.ID, out)))
			t.remove(out)
			t.add(e.PlayerID, e.Seq)
		}
	}
	n.Teams[e.TeamID] = t
	return n, faults
}

// enter adds a substituted player, evicting the least-recently-confirmed
// player when the set is already full.
func (s State) enter(t *Team, player string, seq int64) []model.Fault {
	switch {
	case t.Has(player):
		t.LastConfirmed[player] = seq
		return []model.Fault{s.fault(model.ErrSubstitutionConsistency, seq, RuleSubInPresent,
			fmt.Sprintf("player %s of %s is already on court", player, t.ID))}
	case len(t.OnCourt) >= model.LineupSize:
		out := t.leastRecentlyConfirmed()
		t.remove(out)
		t.add(player, seq)
		return []model.Fault{s.fault(model.ErrSubstitutionConsistency, seq, RuleSubInFull,
			fmt.Sprintf("player %s of %s entered a full lineup; dropped %s", player, t.ID, out))}
	}
	t.add(player, seq)
	return nil
}

func startersFor(sets []model.StarterSet, period int, team string) ([]string, bool) {
	for _, s := range sets {
		if s.Period == period && s.TeamID == team {
			return s.Players, true
		}
	}
	return nil, false
}

// startsPlay reports whether the event shows live play rather than setup.
func startsPlay(e model.Event) bool {
	switch e.Type {
	case model.EventPeriodStart, model.EventPeriodEnd, model.EventSubstitutionIn,
		model.EventSubstitutionOut, model.EventTimeout, model.EventOther:
		return false
	}
	return true
}
