// Package metrics provides Prometheus metrics for the index engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsProcessed tracks documents handled by maintenance operations
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "resolver",
			Name:      "documents_total",
			Help:      "Total number of documents processed by operation and status",
		},
		[]string{"operation", "status"},
	)

	// ReferencesResolved tracks reference resolution outcomes
	ReferencesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "resolver",
			Name:      "references_total",
			Help:      "Total number of references resolved by outcome (direct, locator, orphan)",
		},
		[]string{"outcome"},
	)

	// PageDuration tracks how long one page of a bulk run takes
	PageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "briar",
			Subsystem: "resolver",
			Name:      "page_duration_seconds",
			Help:      "Duration of one bulk maintenance page in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// EdgeWrites tracks edge index row writes
	EdgeWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "index",
			Name:      "edge_writes_total",
			Help:      "Total number of edge rows written by kind (upsert, tombstone)",
		},
		[]string{"kind"},
	)

	// LocatorWrites tracks locator index row writes
	LocatorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "index",
			Name:      "locator_writes_total",
			Help:      "Total number of locator rows written by kind (upsert, delete)",
		},
		[]string{"kind"},
	)

	// OrphansRecorded tracks orphaned references
	OrphansRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "index",
			Name:      "orphans_total",
			Help:      "Total number of orphaned references recorded",
		},
	)

	// BatchSubmissions tracks table batch submissions
	BatchSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "tablestore",
			Name:      "batches_total",
			Help:      "Total number of table batch submissions by table and status",
		},
		[]string{"table", "status"},
	)

	// ChangeFeedMessages tracks change-feed messages consumed
	ChangeFeedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "changefeed",
			Name:      "messages_total",
			Help:      "Total number of change-feed messages by operation and status",
		},
		[]string{"op", "status"},
	)
)

// RecordBatch records the outcome of a batch submission.
func RecordBatch(table string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BatchSubmissions.WithLabelValues(table, status).Inc()
}
