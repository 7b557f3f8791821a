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
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics use the default namespace", func() {
				manager.questsCompleted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "profilequest_api_quests_completed_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("pq"),
				WithSubsystem("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.signups.Inc()

			Convey("Then names and constant labels follow the options", func() {
				expected := `
# HELP pq_test_signups_total Total number of accounts created
# TYPE pq_test_signups_total counter
pq_test_signups_total{env="test"} 1
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "pq_test_signups_total"), ShouldBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When a completion is recorded", func() {
			before := testutil.ToFloat64(globalManager.xpAwarded)
			levels := testutil.ToFloat64(globalManager.levelUps)
			RecordQuestCompleted(150, 2)

			Convey("Then xp and level-ups accumulate", func() {
				So(testutil.ToFloat64(globalManager.xpAwarded)-before, ShouldEqual, 150)
				So(testutil.ToFloat64(globalManager.levelUps)-levels, ShouldEqual, 2)
			})
		})

		Convey("When labeled counters are recorded", func() {
			RecordQuestsGenerated("fallback", 5)
			RecordRateLimited("auth")
			RecordAvatar("dicebear")

			So(testutil.ToFloat64(globalManager.questsGenerated.WithLabelValues("fallback")), ShouldBeGreaterThanOrEqualTo, 5)
			So(testutil.ToFloat64(globalManager.rateLimited.WithLabelValues("auth")), ShouldBeGreaterThanOrEqualTo, 1)
			So(testutil.ToFloat64(globalManager.avatars.WithLabelValues("dicebear")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("When every recorder is called", func() {
			So(func() {
				RecordSignup()
				RecordAuthFailure("bad_token")
				RecordAIRequest("groq", "ok", 12)
				RecordHTTPRequest("/api/health", "GET", "200")
				RecordHTTPRequestDuration("/api/health", "GET", "200", 1.5)
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordRefillDuplicate()
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(4)
				RecordWorkerError()
				RecordQuestsRefilled(5)
				RecordStoreLatency("memory", "complete_quest", 0.2)
				RecordErrorByComponent("queue", "closed")
				RecordErrorByEndpoint("/api/quests", "GET", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
