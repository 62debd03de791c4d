package news

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricNewsRefreshTotal         = "news_refresh_total"
	MetricNewsRefreshDuration      = "news_refresh_duration_seconds"
	MetricNewsFeedErrors           = "news_feed_errors_total"
	MetricNewsCacheRequests        = "news_cache_requests_total"
	MetricNewsCachedItems          = "news_cached_items"
	MetricNewsLastRefreshTimestamp = "news_last_refresh_timestamp_seconds"
)

// Refresh status label values.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
)

// Cache request result label values.
const (
	CacheHit       = "hit"       // fresh snapshot served
	CacheRefreshed = "refreshed" // refresh succeeded
	CacheStale     = "stale"     // refresh failed or backing off, old snapshot served
	CacheEmpty     = "empty"     // nothing to serve
)

// Metrics contains Prometheus metrics for the news cache.
// All operations are thread-safe.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	feedErrors      *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
	cachedItems     prometheus.Gauge
	lastRefresh     prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNewsRefreshTotal,
				Help: "Total number of news cache refreshes by status",
			},
			[]string{"status"},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricNewsRefreshDuration,
				Help:    "Duration of news cache refreshes in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
		),
		feedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNewsFeedErrors,
				Help: "Total number of failed feed fetches by search term",
			},
			[]string{"term"},
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNewsCacheRequests,
				Help: "Total number of news requests by cache result",
			},
			[]string{"result"},
		),
		cachedItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricNewsCachedItems,
				Help: "Number of items in the current news snapshot",
			},
		),
		lastRefresh: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricNewsLastRefreshTimestamp,
				Help: "Unix timestamp of the last successful news refresh",
			},
		),
	}
}

// Collectors returns all collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.refreshTotal,
		m.refreshDuration,
		m.feedErrors,
		m.cacheRequests,
		m.cachedItems,
		m.lastRefresh,
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRefresh records the outcome and duration of one refresh.
func (m *Metrics) ObserveRefresh(status string, seconds float64) {
	m.refreshTotal.WithLabelValues(status).Inc()
	m.refreshDuration.Observe(seconds)
}

// IncFeedErrors increments the failed fetch counter for a search term.
func (m *Metrics) IncFeedErrors(term string) {
	m.feedErrors.WithLabelValues(term).Inc()
}

// IncCacheRequests increments the request counter for a cache result.
func (m *Metrics) IncCacheRequests(result string) {
	m.cacheRequests.WithLabelValues(result).Inc()
}

// SetSnapshot records the size and time of a newly installed snapshot.
func (m *Metrics) SetSnapshot(items int, unixSeconds float64) {
	m.cachedItems.Set(float64(items))
	m.lastRefresh.Set(unixSeconds)
}
