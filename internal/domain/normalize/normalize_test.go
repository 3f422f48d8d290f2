package normalize

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/okian/courtside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func decode(t *testing.T, src string) model.RawGame {
	t.Helper()
	var raw model.RawGame
	if err := json.Unmarshal([]byte(src), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return raw
}

func TestNormalizeOrdering(t *testing.T) {
	Convey("Given events out of order with sparse provider keys", t, func() {
		raw := decode(t, `{"game_id":"g1","events":[
			{"eventnum":30,"period":1,"clock":"11:40","event_type":"rebound","team_id":"B"},
			{"eventnum":10,"period":1,"clock":"12:00","event_type":"period_start"},
			{"eventnum":20,"period":1,"clock":"11:45","event_type":"missed_shot","team_id":"A","player_id":"a1"}
		]}`)

		g, faults, err := Normalize(raw)

		Convey("Then events are ordered by key and renumbered densely", func() {
			So(err, ShouldBeNil)
			So(faults, ShouldBeEmpty)
			So(len(g.Events), ShouldEqual, 3)
			So(g.Events[0].Type, ShouldEqual, model.EventPeriodStart)
			So(g.Events[1].Type, ShouldEqual, model.EventMissedShot)
			So(g.Events[2].Type, ShouldEqual, model.EventRebound)
			for i, e := range g.Events {
				So(e.Seq, ShouldEqual, int64(i+1))
			}
			So(g.Events[1].SourceSeq, ShouldEqual, "20")
			So(g.Events[1].ClockSeconds, ShouldEqual, 705)
		})

		Convey("And teams are taken from acting teams", func() {
			So(g.HomeTeamID, ShouldEqual, "A")
			So(g.AwayTeamID, ShouldEqual, "B")
		})
	})

	Convey("Given events without any sequence key", t, func() {
		raw := decode(t, `{"game_id":"g1","events":[
			{"period":2,"clock":700,"event_type":"turnover","team_id":"A"},
			{"period":1,"clock":10,"event_type":"turnover","team_id":"B"},
			{"period":1,"clock":600,"event_type":"turnover","team_id":"A"}
		]}`)

		g, _, err := Normalize(raw)

		Convey("Then order follows period then clock remaining", func() {
			So(err, ShouldBeNil)
			So(g.Events[0].ClockSeconds, ShouldEqual, 600)
			So(g.Events[1].ClockSeconds, ShouldEqual, 10)
			So(g.Events[2].Period, ShouldEqual, 2)
		})
	})
}

func TestNormalizeMalformed(t *testing.T) {
	Convey("Given games that cannot be sequenced or identified", t, func() {
		cases := []struct{ name, src string }{
			{"missing game id", `{"events":[{"eventnum":1,"event_type":"turnover"}]}`},
			{"mixed game ids", `{"game_id":"g1","events":[{"game_id":"g2","eventnum":1,"event_type":"turnover"}]}`},
			{"duplicate seq", `{"game_id":"g1","events":[{"eventnum":1},{"eventnum":1.0}]}`},
			{"partial seq keys", `{"game_id":"g1","events":[{"eventnum":1},{"event_type":"turnover"}]}`},
		}
		for _, tc := range cases {
			Convey("Then "+tc.name+" is a malformed game", func() {
				_, _, err := Normalize(decode(t, tc.src))
				So(errors.Is(err, model.ErrMalformedGame), ShouldBeTrue)
				var mg *model.MalformedGameError
				So(errors.As(err, &mg), ShouldBeTrue)
			})
		}
	})
}

func TestNormalizeProviderVariants(t *testing.T) {
	Convey("Given NBA stats style records", t, func() {
		raw := decode(t, `{"events":[
			{"GAME_ID":"0021","EVENTNUM":2,"PERIOD":1,"PCTIMESTRING":"11:45","EVENTMSGTYPE":1,"PLAYER1_TEAM_ID":1610612737,"PLAYER1_ID":201,"HOMEDESCRIPTION":"Young 25' 3PT Jump Shot"},
			{"GAME_ID":"0021","EVENTNUM":3,"PERIOD":1,"PCTIMESTRING":"11:45","EVENTMSGTYPE":6,"PLAYER1_TEAM_ID":1610612738,"VISITORDESCRIPTION":"Tatum S.FOUL (P1.T1)"},
			{"GAME_ID":"0021","EVENTNUM":4,"PERIOD":1,"PCTIMESTRING":"11:45","EVENTMSGTYPE":3,"PLAYER1_TEAM_ID":1610612737,"HOMEDESCRIPTION":"MISS Young Free Throw 1 of 1"},
			{"GAME_ID":"0021","EVENTNUM":5,"PERIOD":1,"PCTIMESTRING":"11:40","EVENTMSGTYPE":8,"PLAYER1_TEAM_ID":1610612737,"PLAYER1_ID":201,"PLAYER2_ID":202},
			{"GAME_ID":"0021","EVENTNUM":6,"PERIOD":1,"PCTIMESTRING":"11:30","EVENTMSGTYPE":3,"PLAYER1_TEAM_ID":1610612738,"VISITORDESCRIPTION":"Brown Free Throw Technical"}
		]}`)

		g, faults, err := Normalize(raw)
		So(err, ShouldBeNil)
		So(faults, ShouldBeEmpty)
		So(g.ID, ShouldEqual, "0021")

		Convey("Then shot values, fouls and free throws come from descriptions", func() {
			So(g.Events[0].Type, ShouldEqual, model.EventMadeShot)
			So(g.Events[0].Shot.Value, ShouldEqual, 3)
			So(g.Events[0].TeamID, ShouldEqual, "1610612737")
			So(g.Events[1].Foul.Shooting, ShouldBeTrue)
			So(g.Events[2].FreeThrow.Made, ShouldBeFalse)
			So(g.Events[2].FreeThrow.Number, ShouldEqual, 1)
			So(g.Events[2].FreeThrow.Total, ShouldEqual, 1)
			So(g.Events[2].FreeThrow.Final(), ShouldBeTrue)
			So(g.Events[4].FreeThrow.Technical, ShouldBeTrue)
			So(g.Events[4].FreeThrow.Made, ShouldBeTrue)
		})

		Convey("Then a combined substitution keeps both players", func() {
			sub := g.Events[3]
			So(sub.Type, ShouldEqual, model.EventSubstitutionOut)
			So(sub.PlayerID, ShouldEqual, "201")
			So(sub.Sub.IncomingPlayerID, ShouldEqual, "202")
		})
	})

	Convey("Given live-feed style records", t, func() {
		raw := decode(t, `{"gameId":"g9","events":[
			{"actionNumber":1,"period":1,"clock":"PT11M32.00S","actionType":"3pt","shotResult":"Made","teamTricode":"BOS","personId":7},
			{"actionNumber":2,"period":1,"clock":"PT11M10.50S","actionType":"2pt","shotResult":"Missed","teamTricode":"NYK"}
		]}`)

		g, _, err := Normalize(raw)
		So(err, ShouldBeNil)
		So(g.Events[0].Type, ShouldEqual, model.EventMadeShot)
		So(g.Events[0].Shot.Value, ShouldEqual, 3)
		So(g.Events[0].ClockSeconds, ShouldEqual, 692)
		So(g.Events[0].PlayerID, ShouldEqual, "7")
		So(g.Events[1].Type, ShouldEqual, model.EventMissedShot)
		So(g.Events[1].Shot.Value, ShouldEqual, 2)
	})
}

func TestNormalizeNeverDrops(t *testing.T) {
	Convey("Given an unparseable event type", t, func() {
		raw := decode(t, `{"game_id":"g1","events":[
			{"seq":1,"event_type":"made_shot","team_id":"A"},
			{"seq":2,"event_type":"coach challenge","team_id":"A"},
			{"seq":3}
		]}`)

		g, faults, err := Normalize(raw)

		Convey("Then the event is kept as other and a fault is reported", func() {
			So(err, ShouldBeNil)
			So(len(g.Events), ShouldEqual, 3)
			So(g.Events[1].Type, ShouldEqual, model.EventOther)
			So(g.Events[2].Type, ShouldEqual, model.EventOther)
			So(len(faults), ShouldEqual, 2)
			So(errors.Is(faults[0], model.ErrUnknownEvent), ShouldBeTrue)
			So(faults[0].Seq, ShouldEqual, 2)
			So(faults[1].Seq, ShouldEqual, 3)
		})

		Convey("Then missing period and clock carry forward", func() {
			So(g.Events[2].Period, ShouldEqual, 1)
		})
	})
}

func TestEnvelopeAliases(t *testing.T) {
	Convey("Given a stats-style envelope with a numeric GAME_ID", t, func() {
		raw := decode(t, `{"GAME_ID":21900001,"homeTeamId":"BOS","awayTeamId":"NYK","events":[
			{"eventnum":1,"period":1,"event_type":"period_start"}
		]}`)

		Convey("Then the identity is read from the aliases", func() {
			So(raw.GameID, ShouldEqual, "21900001")
			So(raw.HomeTeamID, ShouldEqual, "BOS")
			So(raw.AwayTeamID, ShouldEqual, "NYK")

			g, _, err := Normalize(raw)
			So(err, ShouldBeNil)
			So(g.ID, ShouldEqual, "21900001")
			So(g.Events[0].GameID, ShouldEqual, "21900001")
		})
	})

	Convey("Given both the canonical key and an alias", t, func() {
		raw := decode(t, `{"game_id":"g1","gameId":"other","events":[]}`)

		Convey("Then the canonical key wins", func() {
			So(raw.GameID, ShouldEqual, "g1")
		})
	})
}

func TestNormalizeNaturalKeyOrder(t *testing.T) {
	Convey("Given string sequence keys with embedded numbers", t, func() {
		raw := decode(t, `{"game_id":"g1","events":[
			{"play_id":"p10","period":1,"event_type":"rebound","team_id":"B"},
			{"play_id":"p9","period":1,"event_type":"missed_shot","team_id":"A"},
			{"play_id":"p1","period":1,"event_type":"period_start"}
		]}`)

		g, _, err := Normalize(raw)

		Convey("Then digit runs are compared by value", func() {
			So(err, ShouldBeNil)
			So(g.Events[0].SourceSeq, ShouldEqual, "p1")
			So(g.Events[1].SourceSeq, ShouldEqual, "p9")
			So(g.Events[2].SourceSeq, ShouldEqual, "p10")
		})
	})

	Convey("naturalLess compares digit runs numerically", t, func() {
		So(naturalLess("9", "10"), ShouldBeTrue)
		So(naturalLess("a2b", "a10a"), ShouldBeTrue)
		So(naturalLess("b1", "a2"), ShouldBeFalse)
		So(naturalLess("a", "a1"), ShouldBeTrue)
	})
}
