package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline metrics. Registered explicitly from main (no init).
var (
	IngestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "ingest_runs_total",
			Help:      "Completed ingestion runs by terminal status",
		},
		[]string{"status"},
	)

	IngestRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Name:      "ingest_run_duration_seconds",
			Help:      "End-to-end duration of one document processing run",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	IngestChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "ingest_chunks_indexed_total",
			Help:      "Chunks written to the vector index",
		},
	)

	IngestStaleCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "ingest_stale_cleanup_failures_total",
			Help:      "Best-effort stale chunk deletions that failed before re-indexing",
		},
	)
)

// RegisterIngestMetrics registers the ingestion metrics with the default registry.
func RegisterIngestMetrics() {
	prometheus.MustRegister(
		IngestRunsTotal,
		IngestRunDuration,
		IngestChunksIndexed,
		IngestStaleCleanupFailures,
	)
}
