// Package metrics provides Prometheus metrics for the crease scoring and selection service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoring
	ballsRecorded       *prometheus.CounterVec
	ballsRejected       *prometheus.CounterVec
	ballsDuplicate      prometheus.Counter
	ballsVoided         prometheus.Counter
	inningsCompleted    prometheus.Counter
	matchesCompleted    *prometheus.CounterVec
	liveMatches         prometheus.Gauge
	ledgerAppendLatency prometheus.Histogram
	lockWaitLatency     prometheus.Histogram
	lockTimeouts        prometheus.Counter

	// Aggregation and history
	aggregationRuns     prometheus.Counter
	aggregationErrors   prometheus.Counter
	aggregationDuration prometheus.Histogram
	historyPlayers      prometheus.Gauge

	// Rating and selection
	ratingRuns      prometheus.Counter
	ratedPlayers    prometheus.Gauge
	selectionRuns   prometheus.Counter
	blankSlots      *prometheus.CounterVec
	backfilledSlots *prometheus.CounterVec
	schemaErrors    *prometheus.CounterVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	liveClients prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crease",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.ballsRecorded = m.counterVec("balls_recorded_total", "Ball events appended to the ledger", "extra_type")
	m.ballsRejected = m.counterVec("balls_rejected_total", "Ball proposals rejected by validation rule", "rule")
	m.ballsDuplicate = m.counter("balls_duplicate_total", "Ball submissions ignored because their event id was already recorded")
	m.ballsVoided = m.counter("balls_voided_total", "Deliveries cancelled by a compensating void event")
	m.inningsCompleted = m.counter("innings_completed_total", "Innings that reached completion")
	m.matchesCompleted = m.counterVec("matches_completed_total", "Matches that reached completion by result", "result")
	m.liveMatches = m.gauge("live_matches", "Matches with a session held in memory")
	m.ledgerAppendLatency = m.histogram("ledger_append_latency_milliseconds", "Ledger append latency in milliseconds")
	m.lockWaitLatency = m.histogram("lock_wait_latency_milliseconds", "Time spent waiting for a per-match lock in milliseconds")
	m.lockTimeouts = m.counter("lock_timeouts_total", "Per-match lock acquisitions that gave up")

	m.aggregationRuns = m.counter("aggregation_runs_total", "Per-match aggregation runs")
	m.aggregationErrors = m.counter("aggregation_errors_total", "Per-match aggregation runs that failed")
	m.aggregationDuration = m.histogram("aggregation_duration_milliseconds", "Per-match aggregation duration in milliseconds")
	m.historyPlayers = m.gauge("history_players", "Players in the last folded history")

	m.ratingRuns = m.counter("rating_runs_total", "Rating engine runs")
	m.ratedPlayers = m.gauge("rated_players", "Players rated in the last run")
	m.selectionRuns = m.counter("selection_runs_total", "Team selection runs")
	m.blankSlots = m.counterVec("selection_blank_slots_total", "Slots left blank by selection per role", "role")
	m.backfilledSlots = m.counterVec("selection_backfilled_slots_total", "Slots backfilled from other roles per role", "role")
	m.schemaErrors = m.counterVec("schema_errors_total", "Input rejected for schema problems by source", "source")

	m.queueSize = m.gauge("queue_size", "Pending re-aggregation jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Re-aggregation queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Re-aggregation jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Re-aggregation jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Re-aggregation jobs that could not be enqueued")
	m.workerCount = m.gauge("worker_count", "Active aggregation workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Worker jobs that failed")

	m.liveClients = m.gauge("live_clients", "Connected live websocket clients")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordBallRecorded counts an appended delivery.
func RecordBallRecorded(extraType string) {
	globalManager.ballsRecorded.WithLabelValues(extraType).Inc()
}

// RecordBallRejected counts a rejected proposal by the rule it failed.
func RecordBallRejected(rule string) {
	globalManager.ballsRejected.WithLabelValues(rule).Inc()
}

// RecordBallDuplicate counts an idempotent resubmission.
func RecordBallDuplicate() {
	globalManager.ballsDuplicate.Inc()
}

// RecordBallVoided counts an undo.
func RecordBallVoided() {
	globalManager.ballsVoided.Inc()
}

// RecordInningsCompleted counts a completed innings.
func RecordInningsCompleted() {
	globalManager.inningsCompleted.Inc()
}

// RecordMatchCompleted counts a completed match by result kind.
func RecordMatchCompleted(result string) {
	globalManager.matchesCompleted.WithLabelValues(result).Inc()
}

// UpdateLiveMatches sets the number of in-memory match sessions.
func UpdateLiveMatches(count int) {
	globalManager.liveMatches.Set(float64(count))
}

// RecordLedgerAppendLatency records ledger append latency.
func RecordLedgerAppendLatency(latencyMs float64) {
	globalManager.ledgerAppendLatency.Observe(latencyMs)
}

// RecordLockWait records how long a per-match lock took to acquire.
func RecordLockWait(latencyMs float64) {
	globalManager.lockWaitLatency.Observe(latencyMs)
}

// RecordLockTimeout counts an abandoned lock acquisition.
func RecordLockTimeout() {
	globalManager.lockTimeouts.Inc()
}

// RecordAggregation records one aggregation run.
func RecordAggregation(latencyMs float64, err error) {
	globalManager.aggregationRuns.Inc()
	globalManager.aggregationDuration.Observe(latencyMs)
	if err != nil {
		globalManager.aggregationErrors.Inc()
	}
}

// UpdateHistoryPlayers sets the folded history size.
func UpdateHistoryPlayers(count int) {
	globalManager.historyPlayers.Set(float64(count))
}

// RecordRatingRun records a rating run over count players.
func RecordRatingRun(count int) {
	globalManager.ratingRuns.Inc()
	globalManager.ratedPlayers.Set(float64(count))
}

// RecordSelectionRun counts a team selection.
func RecordSelectionRun() {
	globalManager.selectionRuns.Inc()
}

// RecordBlankSlots counts blank slots for a role.
func RecordBlankSlots(role string, count int) {
	globalManager.blankSlots.WithLabelValues(role).Add(float64(count))
}

// RecordBackfilledSlots counts slots of a role filled from other roles.
func RecordBackfilledSlots(role string, count int) {
	globalManager.backfilledSlots.WithLabelValues(role).Add(float64(count))
}

// RecordSchemaError counts rejected input by source (history, ball_by_ball, weights).
func RecordSchemaError(source string) {
	globalManager.schemaErrors.WithLabelValues(source).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
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

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed worker job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateLiveClients sets the websocket client count.
func UpdateLiveClients(count int) {
	globalManager.liveClients.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Since returns milliseconds elapsed since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
