// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	retries         *prometheus.CounterVec
	syncs           *prometheus.CounterVec
	marketsSynced   *prometheus.GaugeVec
	cacheLookups    *prometheus.CounterVec
	streamClients   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omniverse_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omniverse_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omniverse_provider_errors_total",
			Help: "Provider failures swallowed by connectors, by operation.",
		}, []string{"provider", "operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omniverse_provider_retries_total",
			Help: "Retried provider requests.",
		}, []string{"provider"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omniverse_syncs_total",
			Help: "Provider syncs by final status.",
		}, []string{"provider", "status"}),
		marketsSynced: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "omniverse_markets_synced",
			Help: "Markets seen by the last sync of each provider.",
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omniverse_cache_lookups_total",
			Help: "Market cache lookups by result.",
		}, []string{"result"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "omniverse_stream_clients",
			Help: "Connected WebSocket clients.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration, m.providerErrors, m.retries,
		m.syncs, m.marketsSynced, m.cacheLookups, m.streamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ProviderError(provider, operation string) {
	m.providerErrors.WithLabelValues(provider, operation).Inc()
}

func (m *Metrics) Retry(provider string) {
	m.retries.WithLabelValues(provider).Inc()
}

func (m *Metrics) Sync(provider, status string, markets int) {
	m.syncs.WithLabelValues(provider, status).Inc()
	m.marketsSynced.WithLabelValues(provider).Set(float64(markets))
}

func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) StreamClients(delta float64) {
	m.streamClients.Add(delta)
}
