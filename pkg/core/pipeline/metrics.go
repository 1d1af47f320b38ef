package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the run counters exposed for a batch.
type Metrics struct {
	Documents     *prometheus.CounterVec // by outcome: extracted, empty, failed
	Records       *prometheus.CounterVec // raw records by outcome: resolved, dropped
	AuditEntries  *prometheus.CounterVec // by kind and severity
	OracleLatency prometheus.Histogram
	Canonical     prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quarterly_metrics",
			Name:      "documents_total",
			Help:      "Source documents processed, by extraction outcome.",
		}, []string{"outcome"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quarterly_metrics",
			Name:      "raw_records_total",
			Help:      "Raw extraction records, by resolution outcome.",
		}, []string{"outcome"}),
		AuditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quarterly_metrics",
			Name:      "audit_entries_total",
			Help:      "Audit report rows, by kind and severity.",
		}, []string{"kind", "severity"}),
		OracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quarterly_metrics",
			Name:      "oracle_call_seconds",
			Help:      "Latency of extraction oracle calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Canonical: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quarterly_metrics",
			Name:      "canonical_records",
			Help:      "Rows in the canonical dataset of the last batch.",
		}),
	}
	reg.MustRegister(m.Documents, m.Records, m.AuditEntries, m.OracleLatency, m.Canonical)
	return m
}
