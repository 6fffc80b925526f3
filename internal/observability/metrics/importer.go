package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImporterMetrics contains Prometheus metrics for the CSV import pipeline.
type ImporterMetrics struct {
	importsTotal   *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
}

// NewImporterMetrics creates and registers importer metrics.
func NewImporterMetrics(registry *prometheus.Registry) (*ImporterMetrics, error) {
	m := &ImporterMetrics{
		importsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importer_imports_total",
				Help: "Total number of CSV imports by type and final status",
			},
			[]string{"type", "status"},
		),
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importer_rows_total",
				Help: "Total number of processed CSV rows by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		importDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "importer_import_duration_seconds",
				Help:    "Time taken to process one CSV import",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"type"},
		),
	}

	for _, c := range []prometheus.Collector{m.importsTotal, m.rowsTotal, m.importDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordImport records one finished import run.
func (m *ImporterMetrics) RecordImport(importType, status string, imported, skipped int, duration time.Duration) {
	m.importsTotal.WithLabelValues(importType, status).Inc()
	m.rowsTotal.WithLabelValues(importType, "imported").Add(float64(imported))
	m.rowsTotal.WithLabelValues(importType, "skipped").Add(float64(skipped))
	m.importDuration.WithLabelValues(importType).Observe(duration.Seconds())
}
