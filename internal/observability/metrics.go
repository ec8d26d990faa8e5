// Package observability provides Prometheus metrics and structured logging.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ledger.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Processing metrics
	EventsProcessed  *prometheus.CounterVec
	EventsSkipped    *prometheus.CounterVec
	EventsDuplicate  *prometheus.CounterVec
	Completions      *prometheus.CounterVec
	EventLatency     *prometheus.HistogramVec
	LastBlockApplied prometheus.Gauge

	// Integrity metrics
	InvariantViolations  *prometheus.CounterVec
	CorrelationConflicts *prometheus.CounterVec

	// Chain metrics
	MetadataReverts *prometheus.CounterVec
	RPCCallLatency  *prometheus.HistogramVec

	// Sink metrics
	SnapshotsExported *prometheus.CounterVec
	SinkErrors        prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "amm_ledger"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "events_processed_total",
			Help:      "Total number of events applied by kind",
		}, []string{"kind"}),
		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped by kind and reason",
		}, []string{"kind", "reason"}),
		EventsDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "events_duplicate_total",
			Help:      "Total number of already-applied events seen again",
		}, []string{"kind"}),
		Completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "completions_total",
			Help:      "Total number of reconciled mint and burn records",
		}, []string{"kind"}),
		EventLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "event_latency_seconds",
			Help:      "Per-event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		LastBlockApplied: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "last_block_applied",
			Help:      "Block number of the last applied event",
		}),

		InvariantViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "invariant_violations_total",
			Help:      "Total number of units of work rolled back on an invariant violation",
		}, []string{"kind"}),
		CorrelationConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "conflicts_total",
			Help:      "Total number of sub-events that disagreed with their record",
		}, []string{"kind"}),

		MetadataReverts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "metadata_reverts_total",
			Help:      "Total number of reverted token metadata reads by field",
		}, []string{"field"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		SnapshotsExported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "snapshots_exported_total",
			Help:      "Total number of snapshots written to the analytics sink",
		}, []string{"entity"}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total number of failed analytics sink writes",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordProcessed records an applied event and its latency.
func (m *Metrics) RecordProcessed(kind string, seconds float64, block uint64) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(kind).Inc()
	m.EventLatency.WithLabelValues(kind).Observe(seconds)
	m.LastBlockApplied.Set(float64(block))
}

// RecordSkipped records an event skipped for reason.
func (m *Metrics) RecordSkipped(kind, reason string) {
	if m == nil {
		return
	}
	m.EventsSkipped.WithLabelValues(kind, reason).Inc()
}

// RecordDuplicate records an already-applied event.
func (m *Metrics) RecordDuplicate(kind string) {
	if m == nil {
		return
	}
	m.EventsDuplicate.WithLabelValues(kind).Inc()
}

// RecordCompletion records a reconciled mint or burn.
func (m *Metrics) RecordCompletion(kind string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(kind).Inc()
}

// RecordInvariantViolation records a rolled back unit of work.
func (m *Metrics) RecordInvariantViolation(kind string) {
	if m == nil {
		return
	}
	m.InvariantViolations.WithLabelValues(kind).Inc()
}

// RecordConflict records a sub-event that disagreed with its record.
func (m *Metrics) RecordConflict(kind string) {
	if m == nil {
		return
	}
	m.CorrelationConflicts.WithLabelValues(kind).Inc()
}

// RecordMetadataRevert records a reverted metadata read.
func (m *Metrics) RecordMetadataRevert(field string) {
	if m == nil {
		return
	}
	m.MetadataReverts.WithLabelValues(field).Inc()
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordExported records snapshots written to the sink.
func (m *Metrics) RecordExported(entity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SnapshotsExported.WithLabelValues(entity).Add(float64(n))
}

// RecordSinkError records a failed sink write.
func (m *Metrics) RecordSinkError() {
	if m == nil {
		return
	}
	m.SinkErrors.Inc()
}
