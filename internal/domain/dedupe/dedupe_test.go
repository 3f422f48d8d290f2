package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/okian/courtside/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInFlightClaims(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-flight table", t, func() {
		d := dedupe.NewInFlight()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a game is claimed", func() {
			So(d.Claim(ctx, "g1"), ShouldBeNil)

			Convey("Then a second claim is rejected", func() {
				err := d.Claim(ctx, "g1")
				So(errors.Is(err, dedupe.ErrInFlight), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then other games can still be claimed", func() {
				So(d.Claim(ctx, "g2"), ShouldBeNil)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("Then releasing allows a fresh claim", func() {
				d.Release(ctx, "g1")
				So(d.Size(), ShouldEqual, 0)
				So(d.Claim(ctx, "g1"), ShouldBeNil)
			})
		})

		Convey("When releasing a game that was never claimed", func() {
			d.Release(ctx, "nope")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded table", t, func() {
		d := dedupe.NewInFlight(dedupe.WithMaxSize(2))
		So(d.Claim(ctx, "g1"), ShouldBeNil)
		So(d.Claim(ctx, "g2"), ShouldBeNil)

		Convey("Then claims beyond capacity fail without evicting", func() {
			So(errors.Is(d.Claim(ctx, "g3"), dedupe.ErrCapacity), ShouldBeTrue)
			So(errors.Is(d.Claim(ctx, "g1"), dedupe.ErrInFlight), ShouldBeTrue)
			d.Release(ctx, "g2")
			So(d.Claim(ctx, "g3"), ShouldBeNil)
		})
	})

	Convey("Given an unbounded table", t, func() {
		d := dedupe.NewInFlight(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			So(d.Claim(ctx, fmt.Sprintf("g%d", i)), ShouldBeNil)
		}
		So(d.Size(), ShouldEqual, 1000)
	})
}

func TestInFlightHeld(t *testing.T) {
	Convey("Given a table with a controllable clock", t, func() {
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		d := dedupe.NewInFlight(dedupe.WithClock(func() time.Time { return now }))
		So(d.Claim(context.Background(), "g1"), ShouldBeNil)

		now = now.Add(3 * time.Second)
		held, ok := d.Held("g1")
		So(ok, ShouldBeTrue)
		So(held, ShouldEqual, 3*time.Second)

		_, ok = d.Held("g2")
		So(ok, ShouldBeFalse)
	})
}

func TestInFlightConcurrency(t *testing.T) {
	Convey("Given many goroutines racing for the same game", t, func() {
		d := dedupe.NewInFlight()
		var wins atomic.Int64
		var wg sync.WaitGroup

		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.Claim(context.Background(), "contested") == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claim succeeds", func() {
			So(wins.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
