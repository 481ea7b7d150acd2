package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"auditcore/internal/platform/metrics"
	"auditcore/internal/storage"
	"auditcore/pkg/domain"
)

func TestMetrics_IncEventsTotal(t *testing.T) {
	m := metrics.New()
	m.IncEventsTotal()
	m.IncEventsTotal()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsTotal))
}

func TestMetrics_IncAlertsTotal_BySeverity(t *testing.T) {
	m := metrics.New()
	m.IncAlertsTotal(domain.SeverityCritical)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsTotal.WithLabelValues("CRITICAL")))
}

func TestMetrics_SetQueueDepth(t *testing.T) {
	m := metrics.New()
	m.SetQueueDepth("audit-events", 42)
	assert.Equal(t, float64(42), testutil.ToFloat64(m.QueueDepth.WithLabelValues("audit-events")))
}

func TestMetrics_ObserveImplementsStatsSink(t *testing.T) {
	m := metrics.New()
	var sink storage.StatsSink = m
	sink.Observe(storage.QueryStats{Name: "insertBatch", Duration: 5 * time.Millisecond})
}
