// Package metrics defines the Prometheus collectors used by the retrieval
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	RetrievalsTotal        *prometheus.CounterVec
	RetrievalLatency       *prometheus.HistogramVec
	StageLatency           *prometheus.HistogramVec
	SourceResults          *prometheus.HistogramVec
	SourceFailuresTotal    *prometheus.CounterVec
	RerankOutcomesTotal    *prometheus.CounterVec
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	ItemsIndexedTotal      *prometheus.CounterVec
	IndexDocuments         prometheus.Gauge
	IndexTerms             prometheus.Gauge
	CircuitBreakerState    *prometheus.GaugeVec
	EmbeddingCacheHits     prometheus.Counter
	EmbeddingCacheMisses   prometheus.Counter
	AnalyticsEventsDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh private registry, which keeps tests free of duplicate-registration
// panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RetrievalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrievals_total",
				Help: "Total retrieval requests by result type (hit, zero_result, degraded, error).",
			},
			[]string{"result_type"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_latency_seconds",
				Help:    "End-to-end retrieval latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"cache_status"},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_stage_latency_seconds",
				Help:    "Latency of each retrieval stage (vector, graph, bm25, fusion, rerank, temporal).",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"stage"},
		),
		SourceResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_source_results",
				Help:    "Number of results contributed per source per request.",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
			[]string{"source"},
		),
		SourceFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_source_failures_total",
				Help: "Provider calls that failed and degraded to an empty list.",
			},
			[]string{"source"},
		),
		RerankOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rerank_outcomes_total",
				Help: "Rerank stage outcomes by reason (applied, disabled, backend_error, ...).",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		ItemsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_operations_total",
				Help: "Exact-match index mutations by operation (upsert, delete).",
			},
			[]string{"op"},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of items in the exact-match index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the exact-match index.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		EmbeddingCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_hits_total",
				Help: "Query embeddings served from the in-process cache.",
			},
		),
		EmbeddingCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_misses_total",
				Help: "Query embeddings fetched from the embedding API.",
			},
		),
		AnalyticsEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Retrieval analytics events dropped because the buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RetrievalsTotal,
		m.RetrievalLatency,
		m.StageLatency,
		m.SourceResults,
		m.SourceFailuresTotal,
		m.RerankOutcomesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ItemsIndexedTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.CircuitBreakerState,
		m.EmbeddingCacheHits,
		m.EmbeddingCacheMisses,
		m.AnalyticsEventsDropped,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler returns the scrape handler for the registry m was built with,
// falling back to the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m != nil && m.gatherer != nil {
		return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
