package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for the prediction endpoint. Each instance
// owns its registry, so tests can create as many as they like.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	latency     prometheus.Histogram
	cacheHits   prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "userpredict",
			Name:      "predictions_total",
			Help:      "Prediction requests by HTTP status and error kind.",
		}, []string{"status", "kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "userpredict",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent serving prediction requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "userpredict",
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions answered from the cache.",
		}),
	}
	registry.MustRegister(
		m.predictions,
		m.latency,
		m.cacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePrediction records one finished request. kind is "ok" for a
// successful prediction, otherwise the error kind.
func (m *Metrics) ObservePrediction(status int, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(http.StatusText(status), kind).Inc()
	m.latency.Observe(elapsed.Seconds())
}

// CacheHit counts a prediction served from the cache.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for inspection.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
