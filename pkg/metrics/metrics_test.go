package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the presence namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "presence")
				So(manager.subsystem, ShouldEqual, "kiosk")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithMetricsEnabled(true),
				WithCustomLabels(map[string]string{"kiosk": "lobby"}),
				WithPrometheusRegistry(registry),
			)
			manager.attempts.WithLabelValues("recognized").Inc()

			Convey("Then names and constant labels are applied", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_pfx_attempts_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "kiosk")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording session metrics", func() {
			before := testutil.ToFloat64(globalManager.attempts.WithLabelValues("not_recognized"))
			RecordAttempt("not_recognized")
			RecordAttemptBusy()
			RecordStageLatency("submit", 120)
			RecordStaleResult("submit")
			RecordLocationSkipped("timeout")
			RecordOutcomeShown("failed")

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.attempts.WithLabelValues("not_recognized")), ShouldEqual, before+1)
			})
		})

		Convey("When updating the session state gauge", func() {
			UpdateSessionState("camera_ready", []string{"camera_off", "camera_ready"})

			Convey("Then only the current state is set", func() {
				So(testutil.ToFloat64(globalManager.sessionState.WithLabelValues("camera_ready")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.sessionState.WithLabelValues("camera_off")), ShouldEqual, 0)
			})
		})

		Convey("When acquiring and releasing a lease", func() {
			active := testutil.ToFloat64(globalManager.leaseActive.WithLabelValues("camera"))
			RecordLeaseAcquire("camera", "ok")
			RecordLeaseAcquire("camera", "permission_denied")
			So(testutil.ToFloat64(globalManager.leaseActive.WithLabelValues("camera")), ShouldEqual, active+1)
			RecordLeaseRelease("camera")
			So(testutil.ToFloat64(globalManager.leaseActive.WithLabelValues("camera")), ShouldEqual, active)
		})

		Convey("When recording backend, api and queue metrics", func() {
			So(func() {
				RecordBackendRequest("attendance", "200", 340)
				RecordHTTPRequest("/session", "GET", "200")
				RecordHTTPRequestDuration("/session", "GET", "200", 1)
				UpdateQueueCapacity(16)
				UpdateQueueSize(2)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("queue_full")
				RecordWorkerError("records_fetch")
				UpdateRecordsCached(3)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordAttempt("recognized")
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "presence_kiosk_attempts_total")
		})
	})
}
