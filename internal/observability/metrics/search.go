package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SearchMetrics contains Prometheus metrics for the search service.
type SearchMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	resultCount   prometheus.Histogram
}

// NewSearchMetrics creates and registers search metrics.
func NewSearchMetrics(registry *prometheus.Registry) (*SearchMetrics, error) {
	m := &SearchMetrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total number of search queries by kind",
			},
			[]string{"kind"}, // fuzzy or filter
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_query_duration_seconds",
				Help:    "Time taken to execute one search query",
				Buckets: prometheus.DefBuckets,
			},
		),
		resultCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_result_count",
				Help:    "Number of results returned per search query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.queriesTotal, m.queryDuration, m.resultCount} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordQuery records one executed search query.
func (m *SearchMetrics) RecordQuery(fuzzy bool, results int, duration time.Duration) {
	kind := "filter"
	if fuzzy {
		kind = "fuzzy"
	}
	m.queriesTotal.WithLabelValues(kind).Inc()
	m.queryDuration.Observe(duration.Seconds())
	m.resultCount.Observe(float64(results))
}
