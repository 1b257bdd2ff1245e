package metrics

type nopGauge struct{}

func (nopGauge) Set(float64) {}
func (nopGauge) Inc()        {}
func (nopGauge) Dec()        {}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

type nopSagaMetrics struct{}

func (nopSagaMetrics) InFlight() Gauge            { return nopGauge{} }
func (nopSagaMetrics) RunDuration(string) Timer   { return nopTimer{} }
func (nopSagaMetrics) RunFinished(string, string) {}

// NopGauge returns a no-op Gauge.
func NopGauge() Gauge { return nopGauge{} }

// NopTimer returns a no-op Timer.
func NopTimer() Timer { return nopTimer{} }

// Nop returns SagaMetrics that records nothing.
func Nop() SagaMetrics { return nopSagaMetrics{} }
