// Package metrics provides abstract metrics interfaces so the tracker and the
// saga bindings can be instrumented without depending on a specific backend.
// See internal/metrics/prom for the Prometheus implementation.
package metrics

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to value.
	Set(value float64)
	// Inc increments the gauge by 1.
	Inc()
	// Dec decrements the gauge by 1.
	Dec()
}

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}

// Saga run outcomes, used as a label value by SagaMetrics implementations.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// SagaMetrics instruments asynchronous saga runs.
type SagaMetrics interface {
	// InFlight mirrors the number of open scoped operations.
	InFlight() Gauge
	// RunDuration starts a timer for one run of the named saga.
	RunDuration(saga string) Timer
	// RunFinished counts a finished run by outcome (OutcomeOK, OutcomeError,
	// OutcomePanic).
	RunFinished(saga, outcome string)
}
