package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/courtside/internal/adapters/report"
	"github.com/okian/courtside/internal/adapters/repository"
	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/config"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/simulate"
	"github.com/okian/courtside/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New(context.Background())
	cfg.DBDSN = filepath.Join(t.TempDir(), "courtside.db")
	cfg.WorkerCount = 2
	cfg.QueueSize = 8
	return cfg
}

func TestRunProcessesDirectory(t *testing.T) {
	convey.Convey("Given a directory of generated games", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		dir := t.TempDir()
		gen := simulate.NewGenerator(simulate.WithSeed(5), simulate.WithPeriods(2), simulate.WithPossessionsPerPeriod(10))
		var games []model.RawGame
		var sums []simulate.Summary
		for i := 0; i < 3; i++ {
			g, s := gen.Game(i)
			games = append(games, g)
			sums = append(sums, s)
		}
		_, err := simulate.WriteGames(ctx, dir, games, 2)
		convey.So(err, convey.ShouldBeNil)

		cfg := testConfig(t)
		cfg.InputDir = dir

		convey.Convey("When run processes it without serving", func() {
			err := run(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every game is committed to the store", func() {
				store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN)
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = store.Close() }()

				for _, s := range sums {
					rec, err := store.Game(ctx, s.GameID)
					convey.So(err, convey.ShouldBeNil)
					convey.So(rec.Status, convey.ShouldEqual, model.StatusCommitted)

					ps, err := store.Possessions(ctx, repository.Filter{GameID: s.GameID})
					convey.So(err, convey.ShouldBeNil)
					convey.So(len(ps), convey.ShouldEqual, s.Possessions)
				}
			})
		})
	})

	convey.Convey("Given an unsupported driver", t, func() {
		cfg := testConfig(t)
		cfg.DBDriver = "mysql"

		convey.Convey("Then run fails before starting anything", func() {
			err := run(context.Background(), cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNewPublisher(t *testing.T) {
	convey.Convey("Given no redis address", t, func() {
		cfg := testConfig(t)
		pub, closeFn, err := newPublisher(context.Background(), cfg, logger.Get())

		convey.Convey("Then the log publisher is used", func() {
			convey.So(err, convey.ShouldBeNil)
			_, ok := pub.(*report.LogPublisher)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(closeFn, convey.ShouldNotBeNil)
			closeFn()
		})
	})

	convey.Convey("Given an unreachable redis address", t, func() {
		cfg := testConfig(t)
		cfg.RedisAddr = "127.0.0.1:1"
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		convey.Convey("Then building the publisher fails", func() {
			_, _, err := newPublisher(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNewRouter(t *testing.T) {
	convey.Convey("Given a router over a started service", t, func() {
		cfg := testConfig(t)
		store, err := repository.Open(context.Background(), cfg.DBDriver, cfg.DBDSN)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		svc := service.New(store, service.WithWorkerCount(1), service.WithQueueSize(4))
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		h := newRouter(cfg, svc)

		convey.Convey("Then the API, docs and metrics routes are mounted", func() {
			for _, path := range []string{"/healthz", "/stats", "/metrics", "/openapi.yaml", "/api-docs", "/api/v1/validation"} {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("And service gauges can be refreshed", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestServeShutsDownOnCancel(t *testing.T) {
	convey.Convey("Given a server on an ephemeral port", t, func() {
		cfg := testConfig(t)
		cfg.Addr = "127.0.0.1:0"
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- serve(ctx, cfg, http.NotFoundHandler(), logger.Get()) }()

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then serve returns cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(10 * time.Second):
					t.Fatal("serve did not return")
				}
			})
		})
	})
}
