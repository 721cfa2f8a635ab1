// Package telemetry exposes Prometheus collectors for the harvester.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingPagesTotal      prometheus.Counter
	fetchRetriesTotal      prometheus.Counter
	detailFetchesTotal     *prometheus.CounterVec
	newRecordsTotal        prometheus.Counter
	normalizerCallsTotal   *prometheus.CounterVec
	syncRowsTotal          *prometheus.CounterVec
	refreshDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		listingPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_listing_pages_total",
			Help: "Total listing pages fetched.",
		})
		fetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_fetch_retries_total",
			Help: "Total HTTP fetch attempts that were retried.",
		})
		detailFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_detail_fetches_total",
			Help: "Total detail-page fetches, labeled by outcome.",
		}, []string{"outcome"})
		newRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_new_records_total",
			Help: "Total new records discovered across runs.",
		})
		normalizerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_normalizer_calls_total",
			Help: "Total normalizer service calls, labeled by outcome.",
		}, []string{"outcome"})
		syncRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_sync_rows_total",
			Help: "Rows handled during durable sync, labeled by outcome.",
		}, []string{"outcome"})
		refreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_refresh_duration_seconds",
			Help:    "Wall time of full refresh runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		})
	})
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ListingPageFetched counts one fetched listing page.
func ListingPageFetched() {
	if listingPagesTotal != nil {
		listingPagesTotal.Inc()
	}
}

// FetchRetry counts one retried fetch attempt.
func FetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// DetailFetch counts one detail fetch with outcome "ok" or "error".
func DetailFetch(outcome string) {
	if detailFetchesTotal != nil {
		detailFetchesTotal.WithLabelValues(outcome).Inc()
	}
}

// NewRecords counts records discovered by a crawl run.
func NewRecords(n int) {
	if newRecordsTotal != nil {
		newRecordsTotal.Add(float64(n))
	}
}

// NormalizerCall counts one normalizer call with outcome "ok" or "error".
func NormalizerCall(outcome string) {
	if normalizerCallsTotal != nil {
		normalizerCallsTotal.WithLabelValues(outcome).Inc()
	}
}

// SyncRows counts rows by outcome: "parsed" or "skipped".
func SyncRows(outcome string, n int) {
	if syncRowsTotal != nil {
		syncRowsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveRefresh records the duration of one refresh run.
func ObserveRefresh(d time.Duration) {
	if refreshDurationSeconds != nil {
		refreshDurationSeconds.Observe(d.Seconds())
	}
}
