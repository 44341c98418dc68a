// Package monitoring exposes render metrics and health checks for the
// preview server and the batch commands.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "bbcode"

// Render outcomes used as the "result" label.
const (
	ResultValid    = "valid"
	ResultFallback = "fallback"
)

// DefaultDurationBuckets covers sub-millisecond renders up to slow files.
var DefaultDurationBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
}

// Metrics owns a private prometheus registry so that several servers or tests
// in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	documents      *prometheus.CounterVec
	problems       *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	inputBytes     prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	wsClients   prometheus.Gauge
	watchEvents *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics. A nil registry gets a fresh
// one with the Go and process collectors attached.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_rendered_total",
				Help:      "Documents rendered, by source and result.",
			},
			[]string{"source", "result"},
		),
		problems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "document_problems_total",
				Help:      "Documents that fell back to raw input, by problem kind.",
			},
			[]string{"kind"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "render_duration_seconds",
				Help:      "Time spent tokenizing, building and rendering one document.",
				Buckets:   DefaultDurationBuckets,
			},
			[]string{"source"},
		),
		inputBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "document_size_bytes",
				Help:      "Size of rendered documents.",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served, by route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "websocket",
				Name:      "clients",
				Help:      "Connected live preview clients.",
			},
		),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "watch",
				Name:      "events_total",
				Help:      "File change batches handled by the watcher, by operation.",
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(
		m.documents,
		m.problems,
		m.renderDuration,
		m.inputBytes,
		m.httpRequests,
		m.httpDuration,
		m.wsClients,
		m.watchEvents,
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRender records one rendered document. problemKind is empty for
// documents that rendered as markup.
func (m *Metrics) RecordRender(source string, size int, valid bool, problemKind string, d time.Duration) {
	if m == nil {
		return
	}
	result := ResultValid
	if !valid {
		result = ResultFallback
		if problemKind != "" {
			m.problems.WithLabelValues(problemKind).Inc()
		}
	}
	m.documents.WithLabelValues(source, result).Inc()
	m.renderDuration.WithLabelValues(source).Observe(d.Seconds())
	m.inputBytes.Observe(float64(size))
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ClientConnected and ClientDisconnected track live preview connections.
func (m *Metrics) ClientConnected() {
	if m != nil {
		m.wsClients.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.wsClients.Dec()
	}
}

// RecordWatchEvent counts one debounced change for op ("write", "create",
// "remove", "rename").
func (m *Metrics) RecordWatchEvent(op string) {
	if m != nil {
		m.watchEvents.WithLabelValues(op).Inc()
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:      m.registry,
		ErrorHandling: promhttp.ContinueOnError,
	})
}
