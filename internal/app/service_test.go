package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/simulate"
	"github.com/okian/courtside/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func openStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	store, err := repository.Open(context.Background(), repository.DriverSQLite, filepath.Join(t.TempDir(), "courtside.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func startService(t *testing.T, store repository.Store, opts ...service.Option) *service.Service {
	t.Helper()
	opts = append([]service.Option{service.WithWorkerCount(2), service.WithQueueSize(8)}, opts...)
	svc := service.New(store, opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func generated(n int) ([]model.RawGame, []simulate.Summary) {
	gen := simulate.NewGenerator(simulate.WithSeed(11), simulate.WithPeriods(2), simulate.WithPossessionsPerPeriod(12))
	games := make([]model.RawGame, n)
	sums := make([]simulate.Summary, n)
	for i := range games {
		games[i], sums[i] = gen.Game(i)
	}
	return games, sums
}

func waitForStatus(ctx context.Context, store repository.Views, gameID string) (repository.GameRecord, error) {
	for {
		rec, err := store.Game(ctx, gameID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		store := openStore(t)
		svc := service.New(store, service.WithWorkerCount(3), service.WithQueueSize(16), service.WithDedupeSize(100))

		Convey("When it has not been started", func() {
			_, err := svc.ProcessBatch(context.Background(), nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Submit(context.Background(), model.RawGame{GameID: "g1"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Stats()["started"], ShouldEqual, false)
		})

		Convey("When it is started and stopped", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.Stats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workers"], ShouldEqual, 3)
			So(stats["inFlight"], ShouldEqual, int64(0))

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stats()["started"], ShouldEqual, false)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When the tolerance is invalid", func() {
			bad := service.New(store, service.WithTolerance(-1))
			So(bad.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestProcessBatch(t *testing.T) {
	Convey("Given a batch of good games and one without identity", t, func() {
		store := openStore(t)
		svc := startService(t, store)
		games, sums := generated(3)
		games = append(games, model.RawGame{Events: []map[string]any{{"event_type": "made_shot", "sequence_number": 1}}})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rep, err := svc.ProcessBatch(ctx, games)
		So(err, ShouldBeNil)

		Convey("Then every game lands in its own bucket", func() {
			So(rep.RunID, ShouldNotBeEmpty)
			So(rep.Total, ShouldEqual, 4)
			So(rep.Succeeded, ShouldEqual, 3)
			So(rep.Skipped, ShouldEqual, 1)
			So(rep.Failed, ShouldEqual, 0)
			So(rep.Finished, ShouldHappenOnOrAfter, rep.Started)
		})

		Convey("And the committed possessions match the generated ones", func() {
			total := 0
			for _, sum := range sums {
				ps, err := store.Possessions(ctx, repository.Filter{GameID: sum.GameID})
				So(err, ShouldBeNil)
				So(len(ps), ShouldEqual, sum.Possessions)
				total += sum.Possessions

				rec, err := store.Game(ctx, sum.GameID)
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, model.StatusCommitted)
				So(rec.RunID, ShouldEqual, rep.RunID)
			}
			So(rep.Possessions, ShouldEqual, total)
		})

		Convey("And each committed game has a validation row", func() {
			rows, err := svc.ValidationResults(ctx, repository.Filter{})
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 3)
			for _, r := range rows {
				So(r.Derived, ShouldBeFalse)
				So(r.TolerancePct, ShouldEqual, 5)
			}
		})

		Convey("And the lineup views are served through the service", func() {
			ratings, err := svc.LineupRatings(ctx, repository.Filter{TeamID: sums[0].HomeTeamID})
			So(err, ShouldBeNil)
			So(ratings, ShouldNotBeEmpty)

			onoff, err := svc.PlayerOnOff(ctx, repository.Filter{PlayerID: sums[0].HomeTeamID + "-01"})
			So(err, ShouldBeNil)
			So(onoff, ShouldNotBeEmpty)
		})

		Convey("And the lifetime totals include the batch", func() {
			totals, ok := svc.Stats()["games"].(model.BatchReport)
			So(ok, ShouldBeTrue)
			So(totals.Total, ShouldEqual, 4)
		})

		Convey("And re-processing the same games replaces their rows", func() {
			again, err := svc.ProcessBatch(ctx, games[:1])
			So(err, ShouldBeNil)
			So(again.Succeeded, ShouldEqual, 1)
			So(again.RunID, ShouldNotEqual, rep.RunID)

			ps, err := store.Possessions(ctx, repository.Filter{GameID: sums[0].GameID})
			So(err, ShouldBeNil)
			So(len(ps), ShouldEqual, sums[0].Possessions)
		})
	})

	Convey("Given a batch whose context is already cancelled", t, func() {
		store := openStore(t)
		svc := startService(t, store)
		games, _ := generated(1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.ProcessBatch(ctx, games)

		Convey("Then the batch reports cancellation", func() {
			So(errors.Is(err, service.ErrBatchCancelled), ShouldBeTrue)
		})
	})
}

func TestQuarantine(t *testing.T) {
	Convey("Given a game whose box score disagrees with its play-by-play", t, func() {
		store := openStore(t)
		games, sums := generated(1)
		games[0].BoxScore.Teams[0].FGA += 200

		Convey("When quarantine is enabled", func() {
			svc := startService(t, store, service.WithQuarantine(true))
			rep, err := svc.ProcessBatch(context.Background(), games)
			So(err, ShouldBeNil)

			Convey("Then the game is quarantined without fact rows", func() {
				So(rep.Quarantined, ShouldEqual, 1)
				So(rep.FailedValidation, ShouldEqual, 1)
				So(rep.Succeeded, ShouldEqual, 0)

				rec, err := store.Game(context.Background(), sums[0].GameID)
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, model.StatusQuarantined)
				So(rec.Reason, ShouldContainSubstring, "deviation")

				ps, err := store.Possessions(context.Background(), repository.Filter{GameID: sums[0].GameID})
				So(err, ShouldBeNil)
				So(ps, ShouldBeEmpty)
			})
		})

		Convey("When quarantine is disabled", func() {
			svc := startService(t, store)
			rep, err := svc.ProcessBatch(context.Background(), games)
			So(err, ShouldBeNil)

			Convey("Then the game commits with a failing validation row", func() {
				So(rep.Succeeded, ShouldEqual, 1)
				So(rep.FailedValidation, ShouldEqual, 1)
				So(rep.Faults["tolerance_exceeded"], ShouldEqual, 1)

				rows, err := store.ValidationResults(context.Background(), repository.Filter{FailedOnly: true})
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].Pass, ShouldBeFalse)
			})
		})
	})
}

func TestSubmit(t *testing.T) {
	Convey("Given a started service", t, func() {
		store := openStore(t)
		svc := startService(t, store)
		games, sums := generated(1)

		Convey("When a game is submitted", func() {
			runID, err := svc.Submit(context.Background(), games[0])
			So(err, ShouldBeNil)
			So(runID, ShouldNotBeEmpty)

			Convey("Then it is committed asynchronously", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				rec, err := waitForStatus(ctx, store, sums[0].GameID)
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, model.StatusCommitted)
				So(rec.RunID, ShouldEqual, runID)
			})
		})

		Convey("When a game has no identity", func() {
			_, err := svc.Submit(context.Background(), model.RawGame{Events: []map[string]any{{"event_type": "rebound"}}})
			So(errors.Is(err, service.ErrMissingGameID), ShouldBeTrue)
		})

		Convey("When the game id only appears on its events", func() {
			raw := games[0]
			raw.GameID = ""
			_, err := svc.Submit(context.Background(), raw)
			So(err, ShouldBeNil)
		})
	})
}
