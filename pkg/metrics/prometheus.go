// Package metrics provides Prometheus metrics for the presence kiosk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the kiosk.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Session metrics
	attempts         *prometheus.CounterVec
	attemptsRejected prometheus.Counter
	stageLatency     *prometheus.HistogramVec
	staleResults     *prometheus.CounterVec
	locationSkipped  *prometheus.CounterVec
	sessionState     *prometheus.GaugeVec
	outcomesShown    *prometheus.CounterVec

	// Lease metrics
	leaseAcquired *prometheus.CounterVec
	leaseReleased *prometheus.CounterVec
	leaseActive   *prometheus.GaugeVec

	// Backend client metrics
	backendRequests       *prometheus.CounterVec
	backendRequestLatency *prometheus.HistogramVec

	// Control API metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Outcome queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerErrors       *prometheus.CounterVec
	recordsCached      prometheus.Gauge

	// Process metrics
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	systemGCPause     prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "presence",
		subsystem:        "kiosk",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.attempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("attempts_total"),
		Help:        "Attendance attempts that reached a terminal outcome, by outcome kind",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.attemptsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("attempts_busy_total"),
		Help:        "Attempts refused because another attempt was in flight",
		ConstLabels: constLabels,
	})

	m.stageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stage_latency_milliseconds"),
		Help:        "Latency of each attempt stage (location, capture, submit) in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"stage"})

	m.staleResults = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stale_results_total"),
		Help:        "Async results discarded because their attempt was superseded",
		ConstLabels: constLabels,
	}, []string{"stage"})

	m.locationSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("location_skipped_total"),
		Help:        "Attempts that continued without a location fix, by reason",
		ConstLabels: constLabels,
	}, []string{"reason"})

	m.sessionState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("session_state"),
		Help:        "1 for the state the session is currently in, 0 otherwise",
		ConstLabels: constLabels,
	}, []string{"state"})

	m.outcomesShown = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("outcomes_shown_total"),
		Help:        "Outcomes delivered to the notification sink",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.leaseAcquired = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("lease_acquire_total"),
		Help:        "Hardware lease acquisitions by resource kind and result",
		ConstLabels: constLabels,
	}, []string{"kind", "result"})

	m.leaseReleased = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("lease_release_total"),
		Help:        "Hardware lease releases by resource kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.leaseActive = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("lease_active"),
		Help:        "Live hardware leases by resource kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.backendRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_requests_total"),
		Help:        "Requests sent to the recognition backend",
		ConstLabels: constLabels,
	}, []string{"endpoint", "status"})

	m.backendRequestLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_request_duration_milliseconds"),
		Help:        "Recognition backend round trip in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Control API requests",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "Control API request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("outcome_queue_size"),
		Help:        "Outcome events waiting for the records worker",
		ConstLabels: constLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("outcome_queue_capacity"),
		Help:        "Maximum outcome events the queue holds",
		ConstLabels: constLabels,
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("outcome_queue_enqueued_total"),
		Help:        "Outcome events enqueued",
		ConstLabels: constLabels,
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("outcome_queue_dequeued_total"),
		Help:        "Outcome events handed to the worker",
		ConstLabels: constLabels,
	})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("outcome_queue_enqueue_errors_total"),
		Help:        "Outcome events dropped at enqueue, by reason",
		ConstLabels: constLabels,
	}, []string{"reason"})

	m.workerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("records_worker_errors_total"),
		Help:        "Records refresh failures by error type",
		ConstLabels: constLabels,
	}, []string{"type"})

	m.recordsCached = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("records_cached"),
		Help:        "Attendance records held in the local cache",
		ConstLabels: constLabels,
	})

	m.systemMemoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: constLabels,
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutines"),
		Help:        "Live goroutines",
		ConstLabels: constLabels,
	})

	m.systemGCPause = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_milliseconds"),
		Help:        "Average GC pause in milliseconds",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
		ConstLabels: constLabels,
	})
}

// Session metrics.

// RecordAttempt counts a terminal attempt outcome.
func RecordAttempt(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.attempts.WithLabelValues(outcome).Inc()
}

// RecordAttemptBusy counts an attempt refused with SessionBusy.
func RecordAttemptBusy() {
	if !globalManager.enabled {
		return
	}
	globalManager.attemptsRejected.Inc()
}

// RecordStageLatency records how long an attempt stage took.
func RecordStageLatency(stage string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordStaleResult counts a result dropped for a superseded attempt.
func RecordStaleResult(stage string) {
	if !globalManager.enabled {
		return
	}
	globalManager.staleResults.WithLabelValues(stage).Inc()
}

// RecordLocationSkipped counts an attempt that proceeded without location.
func RecordLocationSkipped(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.locationSkipped.WithLabelValues(reason).Inc()
}

// UpdateSessionState marks state as the current session state.
func UpdateSessionState(state string, all []string) {
	if !globalManager.enabled {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		globalManager.sessionState.WithLabelValues(s).Set(v)
	}
}

// RecordOutcomeShown counts an outcome handed to the notification sink.
func RecordOutcomeShown(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.outcomesShown.WithLabelValues(outcome).Inc()
}

// Lease metrics.

// RecordLeaseAcquire counts an acquire attempt; result is "ok" or an error reason.
func RecordLeaseAcquire(kind, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.leaseAcquired.WithLabelValues(kind, result).Inc()
	if result == "ok" {
		globalManager.leaseActive.WithLabelValues(kind).Inc()
	}
}

// RecordLeaseRelease counts a release of a live lease.
func RecordLeaseRelease(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.leaseReleased.WithLabelValues(kind).Inc()
	globalManager.leaseActive.WithLabelValues(kind).Dec()
}

// Backend metrics.

// RecordBackendRequest counts a backend call; status is the HTTP status or "transport_error".
func RecordBackendRequest(endpoint, status string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.backendRequests.WithLabelValues(endpoint, status).Inc()
	globalManager.backendRequestLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// Control API metrics.

// RecordHTTPRequest records a control API request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records control API request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts an event dropped at enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordWorkerError counts a records refresh failure.
func RecordWorkerError(errorType string) {
	globalManager.workerErrors.WithLabelValues(errorType).Inc()
}

// UpdateRecordsCached sets the size of the records cache.
func UpdateRecordsCached(n int) {
	globalManager.recordsCached.Set(float64(n))
}

// System metrics.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryBytes.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutines.Set(float64(n))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPause.Observe(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
