// Package metrics defines the Prometheus collectors the monitor and the
// HTTP API update. Collectors live in their own registry so tests and
// embedders never collide with the global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "logvigil"

type Metrics struct {
	registry *prometheus.Registry

	EntriesTotal  *prometheus.CounterVec
	CriticalTotal *prometheus.CounterVec
	AlertsTotal   *prometheus.CounterVec
	AnalysesTotal *prometheus.CounterVec
	DroppedTotal  prometheus.Counter
	BufferLength  prometheus.Gauge
	MonitorUp     prometheus.Gauge
	UploadsTotal  *prometheus.CounterVec

	RequestDuration *prometheus.HistogramVec
}

// New builds the collector set on a fresh registry, with Go runtime and
// process collectors included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,

		EntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_total",
				Help:      "Log entries processed by the monitor.",
			},
			[]string{"source"},
		),
		CriticalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "critical_entries_total",
				Help:      "Entries that matched a critical pattern.",
			},
			[]string{"source"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Alerts dispatched to observers.",
			},
			[]string{"kind"},
		),
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Analysis cycles by outcome.",
			},
			[]string{"result"},
		),
		DroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffer_dropped_total",
				Help:      "Entries evicted from the full buffer.",
			},
		),
		BufferLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "buffer_length",
				Help:      "Entries currently waiting for analysis.",
			},
		),
		MonitorUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "monitor_up",
				Help:      "Whether the monitor is running (1 = running).",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Files received by the upload endpoint, by outcome.",
			},
			[]string{"status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	reg.MustRegister(
		m.EntriesTotal,
		m.CriticalTotal,
		m.AlertsTotal,
		m.AnalysesTotal,
		m.DroppedTotal,
		m.BufferLength,
		m.MonitorUp,
		m.UploadsTotal,
		m.RequestDuration,
	)
	return m
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
