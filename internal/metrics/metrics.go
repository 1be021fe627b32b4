// Package metrics exports recognition metrics in Prometheus format.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memory_anchor"

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	tickLatency    prometheus.Histogram
	transitions    *prometheus.CounterVec
	degraded       prometheus.Gauge
	matchDistance  prometheus.Histogram
	enrollments    *prometheus.CounterVec
	registrySize   prometheus.Gauge
	sseSubscribers prometheus.Gauge
}

// New creates the collectors on a fresh registry, plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "ticks_total",
			Help:      "Scan ticks by outcome (no_face, match, unknown, failed, skipped, discarded)",
		}, []string{"outcome"}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tick_duration_seconds",
			Help:      "Frame grab plus extraction time per tick",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "transitions_total",
			Help:      "Emitted recognition state transitions",
		}, []string{"state"}),
		degraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "degraded",
			Help:      "1 while the extractor keeps failing",
		}),
		matchDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "nearest_distance",
			Help:      "Distance to the nearest enrolled face",
			Buckets:   []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1.0, 1.5},
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "requests_total",
			Help:      "Enrollment attempts by result",
		}, []string{"result"}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "faces",
			Help:      "Number of enrolled faces",
		}),
		sseSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "web",
			Name:      "sse_subscribers",
			Help:      "Connected event stream clients",
		}),
	}

	reg.MustRegister(
		m.ticks, m.tickLatency, m.transitions, m.degraded, m.matchDistance,
		m.enrollments, m.registrySize, m.sseSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordTick counts one tick outcome and its duration (zero duration is not observed).
func (m *Metrics) RecordTick(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.tickLatency.Observe(took.Seconds())
	}
}

// RecordTransition counts an emitted state.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// SetDegraded flips the degraded gauge.
func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.degraded.Set(1)
	} else {
		m.degraded.Set(0)
	}
}

// ObserveMatchDistance records the nearest distance of a tick, matched or not.
func (m *Metrics) ObserveMatchDistance(d float64) {
	if m == nil {
		return
	}
	m.matchDistance.Observe(d)
}

// RecordEnrollment counts an enrollment result (ok, no_face, invalid, error).
func (m *Metrics) RecordEnrollment(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// SetRegistrySize updates the enrolled faces gauge.
func (m *Metrics) SetRegistrySize(n int) {
	if m == nil {
		return
	}
	m.registrySize.Set(float64(n))
}

// AddSSESubscribers adjusts the subscriber gauge by delta.
func (m *Metrics) AddSSESubscribers(delta int) {
	if m == nil {
		return
	}
	m.sseSubscribers.Add(float64(delta))
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
