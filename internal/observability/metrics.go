package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the flow
// service.
type Metrics struct {
	FlowQueries   *prometheus.CounterVec // labels: outcome={ok,invalid,unknown_dam}
	QueryDuration prometheus.Histogram

	// Gauge client metrics.
	GaugeRequests     *prometheus.CounterVec // labels: outcome={success,network,timeout,bad_status,not_found,malformed,empty_series}
	GaugeAPIDuration  prometheus.Histogram
	GaugeRetries      prometheus.Counter
	GaugeCache        *prometheus.CounterVec // labels: result={hit,miss}
	FallbackEstimates prometheus.Counter

	// Estimate publishing metrics.
	EstimatesPublished prometheus.Counter
	PublishErrors      prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FlowQueries,
		m.QueryDuration,
		m.GaugeRequests,
		m.GaugeAPIDuration,
		m.GaugeRetries,
		m.GaugeCache,
		m.FallbackEstimates,
		m.EstimatesPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FlowQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "queries_total",
			Help:      "Flow queries by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_flow",
			Name:      "query_duration_seconds",
			Help:      "Duration of a complete flow query including the gauge fetch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}),
		GaugeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "gauge_requests_total",
			Help:      "USGS gauge requests by outcome.",
		}, []string{"outcome"}),
		GaugeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_flow",
			Name:      "gauge_api_duration_seconds",
			Help:      "USGS API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		GaugeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "gauge_retries_total",
			Help:      "Reduced-parameter retries after a recoverable client error.",
		}),
		GaugeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "gauge_cache_total",
			Help:      "Gauge reading cache lookups by result.",
		}, []string{"result"}),
		FallbackEstimates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "fallback_estimates_total",
			Help:      "Queries answered with the capacity-based fallback estimate.",
		}),
		EstimatesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "estimates_published_total",
			Help:      "Flow estimates published to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_flow",
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish a flow estimate.",
		}),
	}
}
