package oliver

import (
	"errors"
	"testing"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEstimate(t *testing.T) {
	convey.Convey("Given FGA=80, FTA=20, ORB=10, TOV=15", t, func() {
		box := model.BoxScore{Teams: []model.TeamTotals{{TeamID: "A", FGA: 80, FTA: 20, ORB: 10, TOV: 15}}}
		v, err := New()
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the estimate is 93.8", func() {
			convey.So(Estimate(box.Teams[0]), convey.ShouldAlmostEqual, 93.8, 1e-9)
		})

		convey.Convey("When 90 possessions are detected", func() {
			res, err := v.Validate("g1", 90, box)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.DeviationPct, convey.ShouldAlmostEqual, 4.05, 0.01)
			convey.So(res.Pass, convey.ShouldBeTrue)
			_, failed := Fault(res)
			convey.So(failed, convey.ShouldBeFalse)
		})

		convey.Convey("When 100 possessions are detected", func() {
			res, err := v.Validate("g1", 100, box)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.DeviationPct, convey.ShouldAlmostEqual, 6.61, 0.01)
			convey.So(res.Pass, convey.ShouldBeFalse)
			f, failed := Fault(res)
			convey.So(failed, convey.ShouldBeTrue)
			convey.So(errors.Is(f, model.ErrToleranceExceeded), convey.ShouldBeTrue)
		})

		convey.Convey("When the tolerance is widened", func() {
			wide, err := New(WithTolerance(7))
			convey.So(err, convey.ShouldBeNil)
			res, _ := wide.Validate("g1", 100, box)
			convey.So(res.Pass, convey.ShouldBeTrue)
			convey.So(res.TolerancePct, convey.ShouldEqual, 7)
		})
	})

	convey.Convey("Given the same totals split across two teams", t, func() {
		box := model.BoxScore{Teams: []model.TeamTotals{
			{TeamID: "A", FGA: 40, FTA: 10, ORB: 5, TOV: 8},
			{TeamID: "B", FGA: 40, FTA: 10, ORB: 5, TOV: 7},
		}}
		v, _ := New()
		res, err := v.Validate("g1", 90, box)
		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Estimated, convey.ShouldAlmostEqual, 93.8, 1e-9)
		convey.So(res.Pass, convey.ShouldBeTrue)
	})
}

func TestValidateEdges(t *testing.T) {
	convey.Convey("Given an empty estimate", t, func() {
		v, _ := New()
		box := model.BoxScore{Teams: []model.TeamTotals{{TeamID: "A"}}}

		zero, _ := v.Validate("g1", 0, box)
		convey.So(zero.Pass, convey.ShouldBeTrue)

		some, _ := v.Validate("g1", 3, box)
		convey.So(some.Pass, convey.ShouldBeFalse)
		convey.So(some.DeviationPct, convey.ShouldEqual, 100)
	})

	convey.Convey("Given invalid input", t, func() {
		_, err := New(WithTolerance(-1))
		convey.So(errors.Is(err, ErrInvalidTolerance), convey.ShouldBeTrue)

		v, _ := New(WithQuarantine(true))
		convey.So(v.Quarantine(), convey.ShouldBeTrue)
		_, err = v.Validate("g1", 10, model.BoxScore{Teams: []model.TeamTotals{{TeamID: "", FGA: -1}}})
		convey.So(errors.Is(err, ErrInvalidBoxScore), convey.ShouldBeTrue)
		_, err = v.Validate("g1", 10, model.BoxScore{})
		convey.So(errors.Is(err, ErrInvalidBoxScore), convey.ShouldBeTrue)
	})
}

func TestDeriveBoxScore(t *testing.T) {
	convey.Convey("Given a short play-by-play", t, func() {
		g := model.Game{ID: "g1", HomeTeamID: "A", AwayTeamID: "B", Events: []model.Event{
			{Type: model.EventMissedShot, TeamID: "A"},
			{Type: model.EventRebound, TeamID: "A"},
			{Type: model.EventMadeShot, TeamID: "A"},
			{Type: model.EventFreeThrow, TeamID: "A", FreeThrow: model.FreeThrow{Made: false}},
			{Type: model.EventRebound, TeamID: "B"},
			{Type: model.EventTurnover, TeamID: "B"},
			{Type: model.EventFreeThrow, TeamID: "B", FreeThrow: model.FreeThrow{Made: true, Technical: true}},
		}}

		box := DeriveBoxScore(g)

		convey.Convey("Then totals are counted per team", func() {
			convey.So(box.Derived, convey.ShouldBeTrue)
			convey.So(box.Teams, convey.ShouldResemble, []model.TeamTotals{
				{TeamID: "A", FGA: 2, FTA: 1, ORB: 1, TOV: 0},
				{TeamID: "B", FGA: 0, FTA: 1, ORB: 0, TOV: 1},
			})
		})
	})
}
