// Package metrics exposes Prometheus metrics for chat turns and the
// conversation queue.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopassist"

// Turn outcomes.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	queueWait     prometheus.Histogram
	queueDepth    prometheus.Gauge
	panicsTotal   prometheus.Counter
	searchResults prometheus.Histogram
}

// New creates the collectors and registers them, along with Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of chat turns by intent and outcome",
			},
			[]string{"intent", "status"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of chat turns in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"intent"},
		),
		queueWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "queue_wait_seconds",
				Help:      "Time turns spend queued behind earlier turns of the same session",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of turns waiting in session queues",
			},
		),
		panicsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turn_panics_total",
				Help:      "Total number of turns that panicked",
			},
		),
		searchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of exact matches per product search",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
	}

	m.registry.MustRegister(
		m.turnsTotal,
		m.turnDuration,
		m.queueWait,
		m.queueDepth,
		m.panicsTotal,
		m.searchResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveTurn records one finished turn.
func (m *Metrics) ObserveTurn(intent, status string, d time.Duration) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "unknown"
	}
	m.turnsTotal.WithLabelValues(intent, status).Inc()
	m.turnDuration.WithLabelValues(intent).Observe(d.Seconds())
}

// ObserveSearch records the exact match count of a search.
func (m *Metrics) ObserveSearch(total int) {
	if m == nil {
		return
	}
	m.searchResults.Observe(float64(total))
}

// IncPanics counts a recovered panic.
func (m *Metrics) IncPanics() {
	if m == nil {
		return
	}
	m.panicsTotal.Inc()
}

// ObserveQueueWait implements queue.Observer.
func (m *Metrics) ObserveQueueWait(d time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.Observe(d.Seconds())
}

// SetQueueDepth implements queue.Observer.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
