// Package assemble joins possessions, lineup snapshots and the running score
// into the fact rows persisted for a game.
package assemble

import (
	"sort"

	"github.com/okian/courtside/internal/domain/lineup"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/possession"
)

// Assemble builds every fact row for one game. It is a pure function of its
// inputs: the same game, detection and tracking always yield identical rows.
func Assemble(g model.Game, det possession.Result, trk lineup.Result) model.GameFacts {
	facts := model.GameFacts{
		GameID:      g.ID,
		HomeTeamID:  g.HomeTeamID,
		AwayTeamID:  g.AwayTeamID,
		Unreliable:  det.Unreliable,
		Possessions: append([]model.Possession(nil), det.Possessions...),
		Snapshots:   append([]model.LineupSnapshot(nil), trk.Snapshots...),
		Stints:      make([]model.Stint, len(trk.Stints)),
	}
	sort.SliceStable(facts.Possessions, func(i, j int) bool { return facts.Possessions[i].Number < facts.Possessions[j].Number })
	sort.SliceStable(facts.Snapshots, func(i, j int) bool {
		a, b := facts.Snapshots[i], facts.Snapshots[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.TeamID < b.TeamID
	})

	// Pass 1: running score after every event.
	index := make(map[int64]int, len(g.Events))
	home := make([]int, len(g.Events))
	away := make([]int, len(g.Events))
	var h, a int
	for i, e := range g.Events {
		index[e.Seq] = i
		switch e.TeamID {
		case g.HomeTeamID:
			h += e.Points()
		case g.AwayTeamID:
			a += e.Points()
		}
		home[i], away[i] = h, a
	}
	margin := func(team string, i int) int {
		if i < 0 {
			return 0
		}
		if team == g.AwayTeamID {
			return away[i] - home[i]
		}
		return home[i] - away[i]
	}

	// Pass 2: lineup hashes at possession start.
	lineups := newLineupIndex(facts.Snapshots)
	for i := range facts.Possessions {
		p := &facts.Possessions[i]
		p.OffensiveLineupHash = lineups.during(p.OffenseTeamID, p.StartSeq, p.EndSeq).Hash
		p.DefensiveLineupHash = lineups.during(p.DefenseTeamID, p.StartSeq, p.EndSeq).Hash
	}

	// Pass 3: stint plus/minus from the margin before open to after close.
	for i, s := range trk.Stints {
		if s.EndSeq != nil {
			end := *s.EndSeq
			s.EndSeq = &end
		}
		if start, ok := index[s.StartSeq]; ok && s.EndSeq != nil {
			if end, ok := index[*s.EndSeq]; ok {
				s.PlusMinus = margin(s.TeamID, end) - margin(s.TeamID, start-1)
			}
		}
		facts.Stints[i] = s
	}
	sort.SliceStable(facts.Stints, func(i, j int) bool {
		x, y := facts.Stints[i], facts.Stints[j]
		if x.PlayerID != y.PlayerID {
			return x.PlayerID < y.PlayerID
		}
		return x.Number < y.Number
	})
	stints := newStintIndex(facts.Stints)

	// Pass 4: event and player facts.
	var pi int
	facts.EventFacts = make([]model.EventFact, 0, len(g.Events))
	for i, e := range g.Events {
		for pi < len(facts.Possessions) && facts.Possessions[pi].EndSeq < e.Seq {
			pi++
		}
		ef := model.EventFact{
			GameID:        g.ID,
			Seq:           e.Seq,
			Period:        e.Period,
			ClockSeconds:  e.ClockSeconds,
			Type:          e.Type,
			HomeScore:     home[i],
			AwayScore:     away[i],
			HomePlusMinus: home[i] - away[i],
		}
		if pi < len(facts.Possessions) && facts.Possessions[pi].Contains(e.Seq) {
			ef.PossessionNumber = facts.Possessions[pi].Number
			ef.OffenseTeamID = facts.Possessions[pi].OffenseTeamID
		}
		for _, team := range []string{g.HomeTeamID, g.AwayTeamID} {
			snap, ok := lineups.at(team, e.Seq)
			if !ok {
				continue
			}
			if team == g.HomeTeamID {
				ef.HomeLineupHash = snap.Hash
			} else {
				ef.AwayLineupHash = snap.Hash
			}
			for _, p := range snap.Players {
				facts.PlayerFacts = append(facts.PlayerFacts, model.PlayerFact{
					GameID:      g.ID,
					Seq:         e.Seq,
					PlayerID:    p,
					TeamID:      team,
					OnCourt:     true,
					StintNumber: stints.at(team, p, e.Seq),
					PlusMinus:   margin(team, i),
				})
			}
		}
		facts.EventFacts = append(facts.EventFacts, ef)
	}
	return facts
}

type lineupIndex map[string][]model.LineupSnapshot

func newLineupIndex(snaps []model.LineupSnapshot) lineupIndex {
	idx := lineupIndex{}
	for _, s := range snaps {
		idx[s.TeamID] = append(idx[s.TeamID], s)
	}
	return idx
}

// at returns the team's latest snapshot emitted at or before seq.
func (l lineupIndex) at(team string, seq int64) (model.LineupSnapshot, bool) {
	snaps := l[team]
	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].Seq > seq })
	if i == 0 {
		return model.LineupSnapshot{}, false
	}
	return snaps[i-1], true
}

// during returns the lineup active at start, or the first one emitted inside
// [start, end] when none was active yet.
func (l lineupIndex) during(team string, start, end int64) model.LineupSnapshot {
	if s, ok := l.at(team, start); ok {
		return s
	}
	if snaps := l[team]; len(snaps) > 0 && snaps[0].Seq <= end {
		return snaps[0]
	}
	return model.LineupSnapshot{}
}

type stintIndex map[string][]model.Stint

func newStintIndex(stints []model.Stint) stintIndex {
	idx := stintIndex{}
	for _, s := range stints {
		k := s.TeamID + "/" + s.PlayerID
		idx[k] = append(idx[k], s)
	}
	return idx
}

// at returns the stint number covering seq, or 0.
func (s stintIndex) at(team, player string, seq int64) int {
	for _, st := range s[team+"/"+player] {
		if seq >= st.StartSeq && (st.EndSeq == nil || seq <= *st.EndSeq) {
			return st.Number
		}
	}
	return 0
}
