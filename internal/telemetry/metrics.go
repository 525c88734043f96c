// Package telemetry exposes Prometheus metrics for the crawl pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_pages_total",
			Help: "Total listing pages fetched, labeled by source.",
		},
		[]string{"source"},
	)

	crawlerPostingsFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_postings_found_total",
			Help: "Total postings discovered, labeled by source.",
		},
		[]string{"source"},
	)

	crawlerPostingsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_postings_inserted_total",
			Help: "Total postings newly inserted, labeled by source.",
		},
		[]string{"source"},
	)

	crawlerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_runs_total",
			Help: "Total per-source pipeline runs, labeled by status.",
		},
		[]string{"status"},
	)

	detailFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_detail_fetch_failures_total",
			Help: "Total detail fetches that failed, labeled by source.",
		},
		[]string{"source"},
	)

	enrichmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrawler_enrichment_requests_total",
			Help: "Total enrichment outcomes, labeled by analysis status.",
		},
		[]string{"status"},
	)

	enrichmentRateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobcrawler_enrichment_rate_limit_delay_seconds",
			Help:    "Histogram of enrichment rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one listing page fetch for a source.
func ObservePage(source string) {
	crawlerPagesTotal.WithLabelValues(source).Inc()
}

// ObservePostingsFound records the number of postings discovered.
func ObservePostingsFound(source string, n int) {
	crawlerPostingsFoundTotal.WithLabelValues(source).Add(float64(n))
}

// ObservePostingsInserted records the number of postings newly inserted.
func ObservePostingsInserted(source string, n int) {
	crawlerPostingsInsertedTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveRun records a finished per-source pipeline run.
func ObserveRun(status string) {
	crawlerRunsTotal.WithLabelValues(status).Inc()
}

// ObserveDetailFetchFailure records one failed detail fetch.
func ObserveDetailFetchFailure(source string) {
	detailFetchFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveEnrichment records one enrichment outcome.
func ObserveEnrichment(status string) {
	enrichmentRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records how long an enrichment call waited for quota.
func ObserveRateLimitDelay(d time.Duration) {
	enrichmentRateLimitDelaySeconds.Observe(d.Seconds())
}
