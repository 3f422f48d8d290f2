// Package metrics provides Prometheus metrics for the courtside pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states exported by the breaker_state gauge.
const (
	BreakerClosed   = "closed"
	BreakerHalfOpen = "half-open"
	BreakerOpen     = "open"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline Metrics - What the reconstruction produces
	gamesProcessed     *prometheus.CounterVec
	gameLatency        prometheus.Histogram
	possessionsFound   prometheus.Counter
	snapshotsEmitted   prometheus.Counter
	stintsRecorded     prometheus.Counter
	dataQualityFaults  *prometheus.CounterVec
	unreliableGames    prometheus.Counter
	validationResults  *prometheus.CounterVec
	validationDeviance prometheus.Histogram

	// Store Metrics - Transactional writer and views
	storeCommitLatency prometheus.Histogram
	storeQueryLatency  *prometheus.HistogramVec
	storeRollbacks     prometheus.Counter
	storeRowsWritten   *prometheus.CounterVec
	breakerState       prometheus.Gauge

	// Queue Metrics - Game task queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - Processing performance
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	workerRetryCount        prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	publishedResults     *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "courtside",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
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

	// Pipeline Metrics
	m.gamesProcessed = auto.NewCounterVec(
		m.counterOpts("games_processed_total", "Total number of games processed by final status"),
		[]string{"status"},
	)
	m.gameLatency = auto.NewHistogram(m.histogramOpts(
		"game_processing_latency_milliseconds", "End-to-end processing latency per game in milliseconds",
		[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}))
	m.possessionsFound = auto.NewCounter(m.counterOpts("possessions_detected_total", "Total number of possessions detected"))
	m.snapshotsEmitted = auto.NewCounter(m.counterOpts("lineup_snapshots_emitted_total", "Total number of lineup snapshots emitted"))
	m.stintsRecorded = auto.NewCounter(m.counterOpts("stints_recorded_total", "Total number of player stints recorded"))
	m.dataQualityFaults = auto.NewCounterVec(
		m.counterOpts("data_quality_faults_total", "Total number of recoverable data-quality faults by kind"),
		[]string{"kind"},
	)
	m.unreliableGames = auto.NewCounter(m.counterOpts("unreliable_games_total", "Games whose possession count was flagged unreliable"))
	m.validationResults = auto.NewCounterVec(
		m.counterOpts("validation_results_total", "Dean Oliver validation results by outcome"),
		[]string{"result"},
	)
	m.validationDeviance = auto.NewHistogram(m.histogramOpts(
		"validation_deviation_percent", "Deviation between detected and estimated possessions in percent",
		[]float64{0.5, 1, 2, 3, 4, 5, 7.5, 10, 15, 25, 50}))

	// Store Metrics
	m.storeCommitLatency = auto.NewHistogram(m.histogramOpts(
		"store_commit_latency_milliseconds", "Per-game transaction latency in milliseconds", m.histogramBuckets))
	m.storeQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("store_query_latency_milliseconds", "Aggregation view latency in milliseconds", m.histogramBuckets),
		[]string{"view"},
	)
	m.storeRollbacks = auto.NewCounter(m.counterOpts("store_rollbacks_total", "Total number of rolled back game transactions"))
	m.storeRowsWritten = auto.NewCounterVec(
		m.counterOpts("store_rows_written_total", "Total number of fact rows committed by table"),
		[]string{"table"},
	)
	m.breakerState = auto.NewGauge(m.gaugeOpts("store_breaker_state", "Store circuit breaker state (0 closed, 1 half-open, 2 open)"))

	// Queue Metrics
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the game queue (backlog indicator)"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of games enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of games dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of rejected enqueues"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"queue_processing_latency_milliseconds", "Time a game waited in the queue in milliseconds", m.histogramBuckets))

	// Worker Metrics
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Current number of workers (processing capacity)"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers currently processing a game"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))
	m.workerRetryCount = auto.NewCounter(m.counterOpts("worker_retries_total", "Total number of game retries"))

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.publishedResults = auto.NewCounterVec(
		m.counterOpts("validation_published_total", "Validation results published by sink and outcome"),
		[]string{"sink", "outcome"},
	)
}

// Pipeline Metrics Functions.

// RecordGameProcessed increments the games counter for a final status.
func RecordGameProcessed(status string) {
	globalManager.gamesProcessed.WithLabelValues(status).Inc()
}

// RecordGameLatency records per-game processing latency in milliseconds.
func RecordGameLatency(latencyMs float64) {
	globalManager.gameLatency.Observe(latencyMs)
}

// RecordPossessions adds detected possessions.
func RecordPossessions(n int) {
	globalManager.possessionsFound.Add(float64(n))
}

// RecordSnapshots adds emitted lineup snapshots.
func RecordSnapshots(n int) {
	globalManager.snapshotsEmitted.Add(float64(n))
}

// RecordStints adds recorded stints.
func RecordStints(n int) {
	globalManager.stintsRecorded.Add(float64(n))
}

// RecordFault increments the data-quality fault counter for a kind.
func RecordFault(kind string) {
	globalManager.dataQualityFaults.WithLabelValues(kind).Inc()
}

// RecordUnreliableGame increments the unreliable games counter.
func RecordUnreliableGame() {
	globalManager.unreliableGames.Inc()
}

// RecordValidation records one validation outcome and its deviation.
func RecordValidation(pass bool, deviationPct float64) {
	result := "fail"
	if pass {
		result = "pass"
	}
	globalManager.validationResults.WithLabelValues(result).Inc()
	globalManager.validationDeviance.Observe(deviationPct)
}

// Store Metrics Functions.

// RecordStoreCommitLatency records per-game transaction latency.
func RecordStoreCommitLatency(latencyMs float64) {
	globalManager.storeCommitLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records the latency of an aggregation view.
func RecordStoreQueryLatency(view string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(view).Observe(latencyMs)
}

// RecordStoreRollback increments the rollback counter.
func RecordStoreRollback() {
	globalManager.storeRollbacks.Inc()
}

// RecordRowsWritten adds committed rows for a table.
func RecordRowsWritten(table string, n int) {
	globalManager.storeRowsWritten.WithLabelValues(table).Add(float64(n))
}

// UpdateBreakerState sets the breaker gauge from a gobreaker state name.
func UpdateBreakerState(state string) error {
	switch state {
	case BreakerClosed:
		globalManager.breakerState.Set(0)
	case BreakerHalfOpen:
		globalManager.breakerState.Set(1)
	case BreakerOpen:
		globalManager.breakerState.Set(2) //nolint:mnd // open
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBreakerState, state)
	}
	return nil
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a task waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordWorkerRetry increments the retry counter.
func RecordWorkerRetry() {
	globalManager.workerRetryCount.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordPublished records a validation result handed to a sink.
func RecordPublished(sink, outcome string) {
	globalManager.publishedResults.WithLabelValues(sink, outcome).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
