package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeStream struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestStreamPublisher(t *testing.T) {
	ctx := context.Background()
	v := model.ValidationResult{GameID: "g1", Detected: 100, Estimated: 93.8, DeviationPct: 6.61, TolerancePct: 5}

	Convey("Given a stream publisher", t, func() {
		fake := &fakeStream{}
		p := NewStreamPublisher(fake, "", 1000)

		Convey("When a validation row is published", func() {
			So(p.PublishValidation(ctx, v), ShouldBeNil)

			Convey("Then it lands on the default stream with a JSON body", func() {
				So(fake.calls, ShouldHaveLength, 1)
				a := fake.calls[0]
				So(a.Stream, ShouldEqual, DefaultStream)
				So(a.MaxLen, ShouldEqual, 1000)
				So(a.Approx, ShouldBeTrue)

				values := a.Values.(map[string]any)
				So(values["game_id"], ShouldEqual, "g1")
				So(values["pass"], ShouldEqual, "false")

				var back model.ValidationResult
				So(json.Unmarshal([]byte(values["data"].(string)), &back), ShouldBeNil)
				So(back, ShouldResemble, v)
			})
		})

		Convey("When a batch report is published", func() {
			r := model.BatchReport{RunID: "run-1", Total: 3, Succeeded: 2, Failed: 1}
			So(p.PublishBatch(ctx, r), ShouldBeNil)
			values := fake.calls[0].Values.(map[string]any)
			So(values["type"], ShouldEqual, "batch")
			So(values["run_id"], ShouldEqual, "run-1")
		})

		Convey("When Redis rejects the write", func() {
			fake.err = errors.New("connection refused")
			err := p.PublishValidation(ctx, v)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "g1")
		})
	})

	Convey("Given a named stream without a cap", t, func() {
		fake := &fakeStream{}
		p := NewStreamPublisher(fake, "custom", 0)
		So(p.PublishValidation(ctx, v), ShouldBeNil)
		So(fake.calls[0].Stream, ShouldEqual, "custom")
		So(fake.calls[0].MaxLen, ShouldEqual, 0)
	})
}

func TestLogPublisher(t *testing.T) {
	Convey("Given a log publisher", t, func() {
		p := NewLogPublisher(logger.Get())
		ctx := context.Background()

		So(p.PublishValidation(ctx, model.ValidationResult{GameID: "g1", Pass: true}), ShouldBeNil)
		So(p.PublishValidation(ctx, model.ValidationResult{GameID: "g2"}), ShouldBeNil)
		So(p.PublishBatch(ctx, model.BatchReport{RunID: "r", Started: time.Now(), Finished: time.Now()}), ShouldBeNil)
		So(NewLogPublisher(nil), ShouldNotBeNil)
	})
}
