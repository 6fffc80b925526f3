// Package datastore metrics integration with the observability package.
package datastore

import (
	"time"

	"github.com/fancyplanties/fancy-planties/internal/observability/metrics"
)

// Metrics is a type alias for metrics.DatastoreMetrics so the rest of the
// datastore package does not import the metrics package directly.
type Metrics = metrics.DatastoreMetrics

// SetMetrics attaches operation metrics to the store. A nil receiver field
// disables recording.
func (ds *DataStore) SetMetrics(m *Metrics) {
	ds.metrics = m
}

// recordOp records one timed operation when metrics are attached. Callers
// defer it with the operation start time and the named return error.
func (ds *DataStore) recordOp(operation string, start time.Time, err error) {
	if ds.metrics != nil {
		ds.metrics.RecordOperation(operation, err, time.Since(start))
	}
}
