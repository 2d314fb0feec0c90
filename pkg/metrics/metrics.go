// Package metrics provides Prometheus instrumentation for tsaccess client
// operations: query counts, rows written, and operation latency.
//
// Metrics are registered with the default registry via promauto; exposing
// them over HTTP is left to the embedding application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts executed statements.
	// Labels: operation (insert/upsert/select/ddl/analysis), status (success/failure)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsaccess_queries_total",
			Help: "Total number of statements executed",
		},
		[]string{"operation", "status"},
	)

	// RowsWritten counts rows sent to the database by the write path.
	// Labels: operation (insert/upsert), table (schema-qualified)
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsaccess_rows_written_total",
			Help: "Total number of rows written",
		},
		[]string{"operation", "table"},
	)

	// OperationLatency tracks per-operation latency in seconds.
	// Labels: operation
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsaccess_operation_latency_seconds",
			Help:    "Latency distribution of client operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"operation"},
	)
)

// Timer measures the duration of a single operation.
type Timer struct {
	operation string
	start     time.Time
}

// NewTimer starts a timer for the named operation.
func NewTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	OperationLatency.WithLabelValues(t.operation).Observe(elapsed.Seconds())
	return elapsed
}

// ObserveQuery records the outcome of one executed statement.
func ObserveQuery(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	QueriesTotal.WithLabelValues(operation, status).Inc()
}
