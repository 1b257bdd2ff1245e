// Package prom implements metrics.SagaMetrics with Prometheus collectors.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/sagastore/internal/metrics"
)

// Latency buckets in seconds.
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

type timer struct {
	obs   prometheus.Observer
	start time.Time
}

func (t *timer) ObserveDuration() {
	t.obs.Observe(time.Since(t.start).Seconds())
}

type sagaMetrics struct {
	inflight    prometheus.Gauge
	runDuration *prometheus.HistogramVec
	runsTotal   *prometheus.CounterVec
}

// NewSagaMetrics registers the saga collectors on reg and returns them as
// metrics.SagaMetrics. Registering twice on the same registry panics.
func NewSagaMetrics(reg prometheus.Registerer) metrics.SagaMetrics {
	m := &sagaMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sagastore_inflight_operations",
			Help: "Asynchronous saga runs entered and not yet released",
		}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagastore_saga_run_duration_seconds",
			Help:    "Asynchronous saga run time in seconds",
			Buckets: defaultBuckets,
		}, []string{"saga"}),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagastore_saga_runs_total",
			Help: "Asynchronous saga runs by outcome",
		}, []string{"saga", "outcome"}),
	}

	reg.MustRegister(m.inflight, m.runDuration, m.runsTotal)
	return m
}

func (m *sagaMetrics) InFlight() metrics.Gauge {
	return m.inflight
}

func (m *sagaMetrics) RunDuration(saga string) metrics.Timer {
	return &timer{obs: m.runDuration.WithLabelValues(saga), start: time.Now()}
}

func (m *sagaMetrics) RunFinished(saga, outcome string) {
	m.runsTotal.WithLabelValues(saga, outcome).Inc()
}
