package assemble

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/okian/courtside/internal/domain/lineup"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/possession"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleGame() model.Game {
	events := []model.Event{
		{Type: model.EventPeriodStart, ClockSeconds: 720},
		{Type: model.EventMadeShot, TeamID: "A", PlayerID: "a1", Shot: model.Shot{Value: 2}, ClockSeconds: 700},
		{Type: model.EventSubstitutionOut, TeamID: "A", PlayerID: "a1", ClockSeconds: 600},
		{Type: model.EventSubstitutionIn, TeamID: "A", PlayerID: "a6", ClockSeconds: 600},
		{Type: model.EventMadeShot, TeamID: "B", PlayerID: "b1", Shot: model.Shot{Value: 3}, ClockSeconds: 580},
		{Type: model.EventPeriodEnd, ClockSeconds: 0},
	}
	for i := range events {
		events[i].GameID = "g1"
		events[i].Seq = int64(i + 1)
		events[i].Period = 1
	}
	return model.Game{
		ID: "g1", HomeTeamID: "A", AwayTeamID: "B", Events: events,
		Starters: []model.StarterSet{
			{Period: 1, TeamID: "A", Players: []string{"a1", "a2", "a3", "a4", "a5"}},
			{Period: 1, TeamID: "B", Players: []string{"b1", "b2", "b3", "b4", "b5"}},
		},
	}
}

func stint(facts model.GameFacts, player string) model.Stint {
	for _, s := range facts.Stints {
		if s.PlayerID == player {
			return s
		}
	}
	return model.Stint{}
}

func TestAssemble(t *testing.T) {
	Convey("Given a detected and tracked game", t, func() {
		g := sampleGame()
		det := possession.Detect(g)
		trk := lineup.Track(g)

		facts := Assemble(g, det, trk)

		Convey("Then one event fact is produced per event with the running score", func() {
			So(len(facts.EventFacts), ShouldEqual, len(g.Events))
			last := facts.EventFacts[4]
			So(last.HomeScore, ShouldEqual, 2)
			So(last.AwayScore, ShouldEqual, 3)
			So(last.HomePlusMinus, ShouldEqual, -1)
			So(last.PossessionNumber, ShouldEqual, 2)
			So(last.OffenseTeamID, ShouldEqual, "B")
			So(facts.EventFacts[5].PossessionNumber, ShouldEqual, 0)
		})

		Convey("Then the cumulative score never decreases", func() {
			for i := 1; i < len(facts.EventFacts); i++ {
				So(facts.EventFacts[i].HomeScore, ShouldBeGreaterThanOrEqualTo, facts.EventFacts[i-1].HomeScore)
				So(facts.EventFacts[i].AwayScore, ShouldBeGreaterThanOrEqualTo, facts.EventFacts[i-1].AwayScore)
			}
		})

		Convey("Then ten player rows are produced per event", func() {
			So(len(facts.PlayerFacts), ShouldEqual, 10*len(g.Events))
			for _, pf := range facts.PlayerFacts {
				So(pf.OnCourt, ShouldBeTrue)
				So(pf.StintNumber, ShouldBeGreaterThan, 0)
			}
		})

		Convey("Then stint plus/minus is the margin change across the stint", func() {
			So(stint(facts, "a1").PlusMinus, ShouldEqual, 2)
			So(stint(facts, "a6").PlusMinus, ShouldEqual, -3)
			So(stint(facts, "b1").PlusMinus, ShouldEqual, 1)
		})

		Convey("Then possessions carry the lineups active at their start", func() {
			So(len(facts.Possessions), ShouldEqual, 2)
			a := facts.Possessions[0]
			So(a.OffensiveLineupHash, ShouldEqual, model.LineupHash([]string{"a1", "a2", "a3", "a4", "a5"}))
			So(a.DefensiveLineupHash, ShouldEqual, model.LineupHash([]string{"b1", "b2", "b3", "b4", "b5"}))
		})

		Convey("Then re-running yields byte-identical rows", func() {
			first, err := json.Marshal(facts)
			So(err, ShouldBeNil)
			second, err := json.Marshal(Assemble(g, det, trk))
			So(err, ShouldBeNil)
			So(string(second), ShouldEqual, string(first))
		})

		Convey("Then the inputs are not mutated", func() {
			for _, s := range trk.Stints {
				So(s.PlusMinus, ShouldEqual, 0)
			}
		})
	})
}
