package lineup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/courtside/internal/domain/model"
)

// Result is the tracker output for one game.
type Result struct {
	Snapshots []model.LineupSnapshot
	Stints    []model.Stint
	Faults    []model.Fault
	Final     State
}

// Track folds Step over a game's events. Snapshots are emitted at tick
// boundaries and only when a team's five changed; substitutions sharing a
// clock tick are applied outs-first as one boundary.
func Track(g model.Game) Result {
	state, faults := NewState(g)
	res := Result{Faults: faults}
	events := applyOrder(g.Events)

	last := map[string]string{}
	rejected := map[string]string{}
	open := map[string]int{} // team/player -> index into res.Stints
	count := map[string]int{}

	if len(events) > 0 {
		for _, id := range state.teamIDs() {
			for _, p := range state.Teams[id].OnCourt {
				res.openStint(g.ID, id, p, events[0].Seq, open, count)
			}
		}
	}

	var boundary int64
	for i, e := range events {
		before := state
		var f []model.Fault
		state, f = Step(state, e)
		res.Faults = append(res.Faults, f...)
		res.diffStints(before, state, e, open, count)

		boundary = max(boundary, e.Seq)
		if i+1 < len(events) && isSub(events[i+1]) && events[i+1].SameTick(e) {
			continue
		}
		for _, id := range state.teamIDs() {
			t := state.Teams[id]
			if !t.Formed {
				continue
			}
			if len(t.OnCourt) != model.LineupSize {
				sig := strings.Join(t.OnCourt, "|")
				if state.Started && rejected[id] != sig {
					rejected[id] = sig
					res.Faults = append(res.Faults, model.Fault{
						Kind:   model.ErrLineupCardinality,
						GameID: g.ID,
						Seq:    boundary,
						Rule:   RuleCardinality,
						Detail: fmt.Sprintf("team %s has %d players on court; snapshot rejected", id, len(t.OnCourt)),
					})
				}
				continue
			}
			delete(rejected, id)
			snap := model.NewLineupSnapshot(g.ID, boundary, id, t.OnCourt)
			if last[id] == snap.Hash {
				continue
			}
			last[id] = snap.Hash
			res.Snapshots = append(res.Snapshots, snap)
		}
	}

	if n := len(g.Events); n > 0 {
		end := g.Events[n-1].Seq
		for _, idx := range open {
			end := end
			res.Stints[idx].EndSeq = &end
			res.Stints[idx].ClosedByGap = true
		}
	}
	sort.SliceStable(res.Stints, func(i, j int) bool {
		a, b := res.Stints[i], res.Stints[j]
		if a.StartSeq != b.StartSeq {
			return a.StartSeq < b.StartSeq
		}
		if a.TeamID != b.TeamID {
			return a.TeamID < b.TeamID
		}
		return a.PlayerID < b.PlayerID
	})
	res.Final = state
	return res
}

// diffStints opens stints for players who entered and closes stints for
// players who left during e.
func (r *Result) diffStints(before, after State, e model.Event, open, count map[string]int) {
	for _, id := range after.teamIDs() {
		prev, next := before.Teams[id], after.Teams[id]
		for _, p := range prev.OnCourt {
			if next.Has(p) {
				continue
			}
			idx, ok := open[key(id, p)]
			if !ok {
				continue
			}
			end := e.Seq
			r.Stints[idx].EndSeq = &end
			r.Stints[idx].ClosedByGap = !(e.Type == model.EventSubstitutionOut && e.PlayerID == p)
			delete(open, key(id, p))
		}
		for _, p := range next.OnCourt {
			if prev.Has(p) {
				continue
			}
			r.openStint(after.GameID, id, p, e.Seq, open, count)
		}
	}
}

func (r *Result) openStint(gameID, team, player string, seq int64, open, count map[string]int) {
	k := key(team, player)
	count[k]++
	r.Stints = append(r.Stints, model.Stint{
		GameID:   gameID,
		PlayerID: player,
		TeamID:   team,
		Number:   count[k],
		StartSeq: seq,
	})
	open[k] = len(r.Stints) - 1
}

func key(team, player string) string { return team + "/" + player }

func isSub(e model.Event) bool {
	return e.Type == model.EventSubstitutionIn || e.Type == model.EventSubstitutionOut
}

// applyOrder moves substitution-outs ahead of substitution-ins within each
// run of same-tick substitutions, so a provider listing the entering player
// first does not overflow the set.
func applyOrder(events []model.Event) []model.Event {
	out := append([]model.Event(nil), events...)
	for i := 0; i < len(out); {
		j := i
		for j < len(out) && isSub(out[j]) && out[j].SameTick(out[i]) {
			j++
		}
		if j-i > 1 {
			run := out[i:j]
			sort.SliceStable(run, func(a, b int) bool {
				return run[a].Type == model.EventSubstitutionOut && run[b].Type != model.EventSubstitutionOut
			})
		}
		if j == i {
			j++
		}
		i = j
	}
	return out
}
