// Package metrics provides Prometheus metrics for the ProfileQuest service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ProfileQuest service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Progression
	questsCompleted prometheus.Counter
	xpAwarded       prometheus.Counter
	levelUps        prometheus.Counter
	signups         prometheus.Counter
	authFailures    *prometheus.CounterVec

	// Generation
	questsGenerated *prometheus.CounterVec
	aiRequests      *prometheus.CounterVec
	aiLatency       *prometheus.HistogramVec
	avatars         *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec

	// Refill queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	refillDuplicates   prometheus.Counter

	// Refill workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	questsRefilled          prometheus.Counter

	// Storage
	storeLatency *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "profilequest",
		subsystem:        "api",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.questsCompleted = auto.NewCounter(m.counterOpts("quests_completed_total", "Total number of quests completed"))
	m.xpAwarded = auto.NewCounter(m.counterOpts("xp_awarded_total", "Total XP awarded by quest completions"))
	m.levelUps = auto.NewCounter(m.counterOpts("level_ups_total", "Total number of levels gained"))
	m.signups = auto.NewCounter(m.counterOpts("signups_total", "Total number of accounts created"))
	m.authFailures = auto.NewCounterVec(m.counterOpts("auth_failures_total", "Rejected logins and tokens"), []string{"reason"})

	m.questsGenerated = auto.NewCounterVec(m.counterOpts("quests_generated_total", "Quests produced by the generator"), []string{"source"})
	m.aiRequests = auto.NewCounterVec(m.counterOpts("ai_requests_total", "Calls to upstream AI providers"), []string{"client", "outcome"})
	m.aiLatency = auto.NewHistogramVec(m.histogramOpts("ai_latency_milliseconds", "Upstream AI call latency in milliseconds", m.histogramBuckets), []string{"client"})
	m.avatars = auto.NewCounterVec(m.counterOpts("avatars_generated_total", "Avatars produced by source"), []string{"used"})

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.rateLimited = auto.NewCounterVec(m.counterOpts("rate_limited_total", "Requests rejected by the rate limiter"), []string{"scope"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("refill_queue_size", "Current number of pending refill jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("refill_queue_capacity", "Maximum refill queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("refill_queue_enqueue_total", "Total number of refill jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("refill_queue_dequeue_total", "Total number of refill jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("refill_queue_enqueue_errors_total", "Refill jobs dropped at enqueue"))
	m.refillDuplicates = auto.NewCounter(m.counterOpts("refill_duplicates_total", "Refill requests skipped because one is in flight"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("refill_worker_active_count", "Number of running refill workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("refill_worker_latency_milliseconds", "Refill job latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("refill_worker_errors_total", "Total number of failed refill jobs"))
	m.questsRefilled = auto.NewCounter(m.counterOpts("quests_refilled_total", "Quests saved by refill workers"))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Storage operation latency in milliseconds", m.histogramBuckets), []string{"driver", "op"})

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordQuestCompleted records a completion with its award and levels gained.
func RecordQuestCompleted(xp int64, levelsGained int) {
	globalManager.questsCompleted.Inc()
	globalManager.xpAwarded.Add(float64(xp))
	if levelsGained > 0 {
		globalManager.levelUps.Add(float64(levelsGained))
	}
}

// RecordSignup increments the signup counter.
func RecordSignup() { globalManager.signups.Inc() }

// RecordAuthFailure records a rejected login or token.
func RecordAuthFailure(reason string) { globalManager.authFailures.WithLabelValues(reason).Inc() }

// RecordQuestsGenerated adds n quests produced from source ("model" or "fallback").
func RecordQuestsGenerated(source string, n int) {
	globalManager.questsGenerated.WithLabelValues(source).Add(float64(n))
}

// RecordAIRequest records an upstream AI call.
func RecordAIRequest(client, outcome string, latencyMs float64) {
	globalManager.aiRequests.WithLabelValues(client, outcome).Inc()
	globalManager.aiLatency.WithLabelValues(client).Observe(latencyMs)
}

// RecordAvatar records which provider produced an avatar.
func RecordAvatar(used string) { globalManager.avatars.WithLabelValues(used).Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited increments the rate limit rejections for scope.
func RecordRateLimited(scope string) { globalManager.rateLimited.WithLabelValues(scope).Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordRefillDuplicate increments the skipped duplicate refill counter.
func RecordRefillDuplicate() { globalManager.refillDuplicates.Inc() }

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordQuestsRefilled adds n quests saved by a refill job.
func RecordQuestsRefilled(n int) { globalManager.questsRefilled.Add(float64(n)) }

// RecordStoreLatency records the latency of a storage operation.
func RecordStoreLatency(driver, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
