package oliver

import (
	"sort"

	"github.com/okian/courtside/internal/domain/model"
)

// DeriveBoxScore rebuilds per-team totals from the play-by-play when no
// external box score is available. Offensive rebounds are rebounds by the
// team whose shot or final free throw was the last miss.
func DeriveBoxScore(g model.Game) model.BoxScore {
	totals := map[string]*model.TeamTotals{}
	team := func(id string) *model.TeamTotals {
		t, ok := totals[id]
		if !ok {
			t = &model.TeamTotals{TeamID: id}
			totals[id] = t
		}
		return t
	}
	for _, id := range []string{g.HomeTeamID, g.AwayTeamID} {
		if id != "" {
			team(id)
		}
	}

	var lastMiss string
	for _, e := range g.Events {
		if e.TeamID == "" {
			continue
		}
		switch e.Type {
		case model.EventMadeShot:
			team(e.TeamID).FGA++
			lastMiss = ""
		case model.EventMissedShot:
			team(e.TeamID).FGA++
			lastMiss = e.TeamID
		case model.EventFreeThrow:
			team(e.TeamID).FTA++
			if !e.FreeThrow.Made && !e.FreeThrow.Technical {
				lastMiss = e.TeamID
			}
		case model.EventRebound:
			if lastMiss == e.TeamID {
				team(e.TeamID).ORB++
			}
			lastMiss = ""
		case model.EventTurnover:
			team(e.TeamID).TOV++
			lastMiss = ""
		}
	}

	box := model.BoxScore{GameID: g.ID, Derived: true}
	for _, t := range totals {
		box.Teams = append(box.Teams, *t)
	}
	sort.Slice(box.Teams, func(i, j int) bool { return box.Teams[i].TeamID < box.Teams[j].TeamID })
	return box
}
