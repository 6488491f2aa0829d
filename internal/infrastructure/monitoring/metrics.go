// Package monitoring exposes Prometheus metrics for the build pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Build pipeline metrics
	BuildsTotal    *prometheus.CounterVec
	BuildDuration  prometheus.Histogram
	BuildsInFlight prometheus.Gauge

	// Merge engine metrics
	MergesTotal    prometheus.Counter
	MergeConflicts prometheus.Counter
	NewCollections prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appforge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		BuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_builds_total",
				Help: "Total number of builds by outcome",
			},
			[]string{"outcome"},
		),
		BuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "appforge_build_duration_seconds",
				Help:    "Full build duration from merge to published artifacts",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		BuildsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appforge_builds_in_flight",
				Help: "Number of builds currently executing",
			},
		),

		MergesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appforge_merges_total",
				Help: "Total number of deltas merged into blueprints",
			},
		),
		MergeConflicts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appforge_merge_conflicts_total",
				Help: "Structural conflicts recovered by preferring the delta value",
			},
		),
		NewCollections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appforge_new_collections_total",
				Help: "Collections whose first appearance triggered scaffolding",
			},
		),

		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appforge_sessions_active",
				Help: "Number of live revision sessions",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appforge_ws_connections",
				Help: "Number of open streaming connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appforge_ws_messages_total",
				Help: "WebSocket messages by direction and type",
			},
			[]string{"direction", "type"},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBuild records a finished build with its outcome ("ready" or "failed")
func (m *Metrics) RecordBuild(outcome string, duration time.Duration) {
	m.BuildsTotal.WithLabelValues(outcome).Inc()
	m.BuildDuration.Observe(duration.Seconds())
}

// RecordMerge records a merge and its report counters
func (m *Metrics) RecordMerge(conflicts, newCollections int) {
	m.MergesTotal.Inc()
	for i := 0; i < conflicts; i++ {
		m.MergeConflicts.Inc()
	}
	for i := 0; i < newCollections; i++ {
		m.NewCollections.Inc()
	}
}

// Uptime returns time since metrics initialization
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
