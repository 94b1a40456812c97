package metrics

import "github.com/prometheus/client_golang/prometheus"

// Catalog and search Prometheus metrics.
var (
	IngestRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "ingest_rows_total",
			Help:      "Total catalog rows normalized into products",
		},
	)

	IngestFieldFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "ingest_field_fallbacks_total",
			Help:      "Row fields replaced by their default during normalization",
		},
		[]string{"field"},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "ingest_duration_seconds",
			Help:      "Catalog ingestion duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	CatalogLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "catalog_loads_total",
			Help:      "Catalog load attempts by outcome",
		},
		[]string{"result"}, // "ok" / "fetch" / "parse" / "index"
	)

	IndexBuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "index_builds_total",
			Help:      "Fuzzy index constructions",
		},
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "index_build_duration_seconds",
			Help:      "Fuzzy index build duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "query_duration_seconds",
			Help:      "Query pipeline duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"sort"},
	)

	QueryResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shelf",
			Name:      "query_results",
			Help:      "Number of products returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	UnknownSortKeysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "unknown_sort_keys_total",
			Help:      "Queries whose sort key was not recognized and left order unchanged",
		},
	)

	StaleResponsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "stale_responses_total",
			Help:      "Query responses discarded because a newer request was dispatched",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers catalog and search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		IngestRowsTotal,
		IngestFieldFallbacksTotal,
		IngestDuration,
		CatalogLoadsTotal,
		IndexBuildsTotal,
		IndexBuildDuration,
		QueryDuration,
		QueryResults,
		UnknownSortKeysTotal,
		StaleResponsesTotal,
	)
	searchMetricsRegistered = true
}
