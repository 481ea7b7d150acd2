// Package metrics is the Metrics Collector (spec §4.14): counters, gauges,
// and histograms covering the audit pipeline, exposed via promauto and
// snapshot for the Monitoring Dashboard collaborator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"auditcore/pkg/domain"
)

// Metrics holds every Prometheus instrument the pipeline feeds.
type Metrics struct {
	EventsTotal         prometheus.Counter
	EventsFailed        *prometheus.CounterVec
	AlertsTotal         *prometheus.CounterVec
	AlertsSuppressed    prometheus.Counter
	QueueDepth          *prometheus.GaugeVec
	ActiveWorkers       prometheus.Gauge
	PoolActiveConns     prometheus.Gauge
	ProcessingLatencyMS prometheus.Histogram
	DBQueryMS           *prometheus.HistogramVec
}

// New creates and registers every instrument.
func New() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events accepted by the pipeline",
		}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_events_failed_total",
			Help: "Total number of audit events that failed processing, by error code",
		}, []string{"code"}),
		AlertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_alerts_total",
			Help: "Total number of alerts delivered, by severity",
		}, []string{"severity"}),
		AlertsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "audit_alerts_suppressed_total",
			Help: "Total number of candidate alerts dropped by the dedupe cooldown",
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Current number of pending jobs, by queue name",
		}, []string{"queue"}),
		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "audit_active_workers",
			Help: "Current number of workers processing a job",
		}),
		PoolActiveConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "audit_pool_active_connections",
			Help: "Current number of acquired database connections",
		}),
		ProcessingLatencyMS: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_processing_latency_ms",
			Help:    "End-to-end processing latency per event, in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		DBQueryMS: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_db_query_ms",
			Help:    "Database query duration, in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"query"}),
	}
}

// IncEventsTotal implements the pipeline's event-accepted hook.
func (m *Metrics) IncEventsTotal() { m.EventsTotal.Inc() }

// IncEventsFailed implements the pipeline's event-failed hook.
func (m *Metrics) IncEventsFailed(code string) { m.EventsFailed.WithLabelValues(code).Inc() }

// IncAlertsTotal implements alerting.Counters.
func (m *Metrics) IncAlertsTotal(severity domain.AlertSeverity) {
	m.AlertsTotal.WithLabelValues(string(severity)).Inc()
}

// IncAlertsSuppressed implements alerting.Counters.
func (m *Metrics) IncAlertsSuppressed() { m.AlertsSuppressed.Inc() }

// SetQueueDepth records the pending depth of one queue.
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetActiveWorkers records the current in-flight worker count.
func (m *Metrics) SetActiveWorkers(n int) { m.ActiveWorkers.Set(float64(n)) }

// SetPoolActiveConnections records the DB pool's acquired-connection count.
func (m *Metrics) SetPoolActiveConnections(n int32) { m.PoolActiveConns.Set(float64(n)) }

// ObserveProcessingLatency records one event's end-to-end latency.
func (m *Metrics) ObserveProcessingLatency(ms float64) { m.ProcessingLatencyMS.Observe(ms) }

// ObserveDBQuery implements storage.StatsSink indirectly via the Observe
// adapter in observe.go; this is the raw instrument-level recorder.
func (m *Metrics) ObserveDBQuery(query string, ms float64) {
	m.DBQueryMS.WithLabelValues(query).Observe(ms)
}
