// Package metrics provides Prometheus metrics for the gridrace game server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the gridrace service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core game metrics
	movesApplied   prometheus.Counter
	historyFlushes prometheus.Counter

	// Store metrics
	storeTxLatency   *prometheus.HistogramVec
	publishedTotal   prometheus.Counter
	subscriberCount  prometheus.Gauge
	rateLimitDenials prometheus.Counter

	// Stream metrics
	openStreams      prometheus.Gauge
	streamFrames     *prometheus.CounterVec
	streamHeartbeats prometheus.Counter

	// Scoring engine metrics
	scoringCycleDuration prometheus.Histogram
	scoringUsersScanned  prometheus.Gauge
	rankingSnapshots     prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "gridrace",
		subsystem:        "game",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.movesApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "moves_applied_total",
		Help:      "Total number of move transactions applied",
	})

	m.historyFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_flushes_total",
		Help:      "Total number of checkpoint arrivals flushed to the history log",
	})

	m.storeTxLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_transaction_latency_milliseconds",
			Help:      "Latency of coordination store transactions in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"transaction"},
	)

	m.publishedTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "published_messages_total",
		Help:      "Total number of messages published on user channels",
	})

	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscriber_count",
		Help:      "Current number of pub/sub subscribers",
	})

	m.rateLimitDenials = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_denials_total",
		Help:      "Total number of time-lock denials",
	})

	m.openStreams = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "open_streams",
		Help:      "Current number of open event streams",
	})

	m.streamFrames = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stream_frames_total",
			Help:      "Total number of SSE frames sent by frame type",
		},
		[]string{"type"},
	)

	m.streamHeartbeats = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_heartbeats_total",
		Help:      "Total number of heartbeat frames sent on idle streams",
	})

	m.scoringCycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_cycle_duration_milliseconds",
		Help:      "Duration of one scoring engine cycle in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.scoringUsersScanned = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_users_scanned",
		Help:      "Number of users scanned in the last scoring cycle",
	})

	m.rankingSnapshots = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_snapshots_total",
		Help:      "Total number of durable ranking snapshots taken",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Package-level helpers operating on the global manager.

// RecordMoveApplied increments the move transaction counter.
func RecordMoveApplied() {
	globalManager.movesApplied.Inc()
}

// RecordHistoryFlush increments the history flush counter.
func RecordHistoryFlush() {
	globalManager.historyFlushes.Inc()
}

// RecordStoreTxLatency records the latency of a named store transaction.
func RecordStoreTxLatency(transaction string, latencyMs float64) {
	globalManager.storeTxLatency.WithLabelValues(transaction).Observe(latencyMs)
}

// RecordPublish increments the published message counter.
func RecordPublish() {
	globalManager.publishedTotal.Inc()
}

// UpdateSubscriberCount sets the current pub/sub subscriber count.
func UpdateSubscriberCount(count int) {
	globalManager.subscriberCount.Set(float64(count))
}

// RecordRateLimitDenial increments the time-lock denial counter.
func RecordRateLimitDenial() {
	globalManager.rateLimitDenials.Inc()
}

// UpdateOpenStreams sets the current open stream count.
func UpdateOpenStreams(count int) {
	globalManager.openStreams.Set(float64(count))
}

// RecordStreamFrame increments the frame counter for the given frame type.
func RecordStreamFrame(frameType string) {
	globalManager.streamFrames.WithLabelValues(frameType).Inc()
}

// RecordStreamHeartbeat increments the heartbeat counter.
func RecordStreamHeartbeat() {
	globalManager.streamHeartbeats.Inc()
}

// RecordScoringCycleDuration records the duration of one scoring cycle.
func RecordScoringCycleDuration(durationMs float64) {
	globalManager.scoringCycleDuration.Observe(durationMs)
}

// UpdateScoringUsersScanned sets the user count of the last scoring cycle.
func UpdateScoringUsersScanned(count int) {
	globalManager.scoringUsersScanned.Set(float64(count))
}

// RecordRankingSnapshot increments the durable snapshot counter.
func RecordRankingSnapshot() {
	globalManager.rankingSnapshots.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
