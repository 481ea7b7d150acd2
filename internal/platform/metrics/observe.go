package metrics

import "auditcore/internal/storage"

// Observe implements storage.StatsSink, feeding the Enhanced DB Client's
// per-query timings into the db_query_ms histogram.
func (m *Metrics) Observe(s storage.QueryStats) {
	m.DBQueryMS.WithLabelValues(s.Name).Observe(float64(s.Duration.Milliseconds()))
}
