// Package metrics exposes Prometheus counters for extraction runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Field outcomes.
const (
	OutcomeFound   = "found"
	OutcomeMissing = "missing"
	OutcomeError   = "error"
)

// Metrics holds the extraction collectors. A nil *Metrics records nothing.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	fieldsTotal *prometheus.CounterVec
	runDuration prometheus.Histogram
	queueDepth  prometheus.Gauge
}

// New registers the collectors on reg, or on the default registry when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docfields_runs_total",
				Help: "Extraction runs by terminal status",
			},
			[]string{"status"},
		),
		fieldsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docfields_fields_total",
				Help: "Field extractions by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docfields_run_duration_seconds",
				Help:    "Extraction run latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		queueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "docfields_queue_depth",
				Help: "Documents waiting in the extraction queue",
			},
		),
	}
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RecordField counts one field extraction.
func (m *Metrics) RecordField(mode, outcome string) {
	if m == nil {
		return
	}
	m.fieldsTotal.WithLabelValues(mode, outcome).Inc()
}

// SetQueueDepth reports pending queue jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Handler serves the given gatherer, or the default one when nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
