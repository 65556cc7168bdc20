// Package metrics holds the Prometheus collectors shared by the ingestion,
// cache and relay components.
//
// Labels are kept to bounded sets: class is one of the fixed entity classes,
// outcome and status are small enums, and source is the configured relay URL.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// Record outcomes counted per ingestion pass
const (
	OutcomeAccepted        = "accepted"
	OutcomeDuplicate       = "duplicate"
	OutcomeRejected        = "rejected"
	OutcomeUnknownKind     = "unknown_kind"
	OutcomeSchemaViolation = "schema_violation"
)

// Source statuses
const (
	SourceOK          = "ok"
	SourceUnreachable = "unreachable"
)

// Refresh results
const (
	RefreshOK      = "ok"
	RefreshFailed  = "failed"
	RefreshSkipped = "skipped"
)

var (
	// recordsTotal counts records by class and outcome
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstr_cache",
			Name:      "ingest_records_total",
			Help:      "Records processed by ingestion passes, by class and outcome.",
		},
		[]string{"class", "outcome"},
	)

	// sourceFetches counts source fetches by source and status
	sourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstr_cache",
			Name:      "source_fetches_total",
			Help:      "Source fetches by source and status.",
		},
		[]string{"source", "status"},
	)

	// anomalies counts duplicate keys whose content differs from the stored row
	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstr_cache",
			Name:      "upsert_anomalies_total",
			Help:      "Writes that hit an existing key with different content.",
		},
		[]string{"class"},
	)

	// passDuration observes the wall time of ingestion passes
	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopstr_cache",
			Name:      "ingest_pass_duration_seconds",
			Help:      "Duration of ingestion passes in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"class"},
	)

	// refreshes counts cache refreshes by class and result
	refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstr_cache",
			Name:      "cache_refreshes_total",
			Help:      "Cache refreshes by class and result.",
		},
		[]string{"class", "result"},
	)

	// staleServes counts reads answered with data older than the requested budget
	staleServes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstr_cache",
			Name:      "cache_stale_serves_total",
			Help:      "Reads served from stale data because the refresh did not finish in time.",
		},
		[]string{"class"},
	)

	// rateLimitFallbacks counts switches from the shared limiter to the local one
	rateLimitFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopstr_cache",
			Name:      "relay_ratelimit_local_fallbacks_total",
			Help:      "Times the relay pacer fell back to its local limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		recordsTotal,
		sourceFetches,
		anomalies,
		passDuration,
		refreshes,
		staleServes,
		rateLimitFallbacks,
	)
}

// ObserveReport adds the counters of a finished pass
func ObserveReport(report *domain.IngestionReport) {
	if report == nil {
		return
	}

	class := string(report.Class)
	recordsTotal.WithLabelValues(class, OutcomeAccepted).Add(float64(report.Accepted))
	recordsTotal.WithLabelValues(class, OutcomeDuplicate).Add(float64(report.Duplicate))
	recordsTotal.WithLabelValues(class, OutcomeRejected).Add(float64(report.Rejected))
	recordsTotal.WithLabelValues(class, OutcomeUnknownKind).Add(float64(report.UnknownKind))
	recordsTotal.WithLabelValues(class, OutcomeSchemaViolation).Add(float64(report.SchemaViolations))
	passDuration.WithLabelValues(class).Observe(report.Duration.Seconds())
}

// SourceFetched records the status of one source fetch
func SourceFetched(source, status string) {
	sourceFetches.WithLabelValues(source, status).Inc()
}

// Anomaly records a divergent duplicate for class
func Anomaly(class domain.EntityClass) {
	anomalies.WithLabelValues(string(class)).Inc()
}

// Refreshed records the result of a cache refresh
func Refreshed(class domain.EntityClass, result string) {
	refreshes.WithLabelValues(string(class), result).Inc()
}

// StaleServe records a read served from stale data
func StaleServe(class domain.EntityClass) {
	staleServes.WithLabelValues(string(class)).Inc()
}

// RateLimitFallback records a switch to the local relay limiter
func RateLimitFallback() {
	rateLimitFallbacks.Inc()
}
