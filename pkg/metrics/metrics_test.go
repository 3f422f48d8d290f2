package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.gamesProcessed.WithLabelValues("COMMITTED").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_games_processed_total")
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.possessionsFound)
			RecordPossessions(3)
			RecordSnapshots(4)
			RecordStints(12)
			RecordGameProcessed("COMMITTED")
			RecordGameLatency(12)
			RecordFault("substitution_consistency")
			RecordUnreliableGame()

			Convey("Then counters advance", func() {
				So(testutil.ToFloat64(globalManager.possessionsFound)-before, ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.dataQualityFaults.WithLabelValues("substitution_consistency")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording validation outcomes", func() {
			pass := testutil.ToFloat64(globalManager.validationResults.WithLabelValues("pass"))
			RecordValidation(true, 4.05)
			RecordValidation(false, 6.6)
			So(testutil.ToFloat64(globalManager.validationResults.WithLabelValues("pass"))-pass, ShouldEqual, 1)
		})

		Convey("When updating the breaker state", func() {
			So(UpdateBreakerState(BreakerOpen), ShouldBeNil)
			So(testutil.ToFloat64(globalManager.breakerState), ShouldEqual, 2)
			So(UpdateBreakerState(BreakerClosed), ShouldBeNil)
			So(testutil.ToFloat64(globalManager.breakerState), ShouldEqual, 0)
			So(errors.Is(UpdateBreakerState("melted"), ErrUnknownBreakerState), ShouldBeTrue)
		})

		Convey("When recording operational metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(2)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(15)
				RecordWorkerError()
				RecordWorkerRetry()
				RecordStoreCommitLatency(3)
				RecordStoreQueryLatency("lineup_ratings", 1)
				RecordStoreRollback()
				RecordRowsWritten("possessions", 180)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 0.5)
				RecordErrorByComponent("store", "commit")
				RecordPublished("redis", "ok")
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
