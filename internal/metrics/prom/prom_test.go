package prom

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sagastore/internal/metrics"
)

func TestNewSagaMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetrics(reg)
	require.NotNil(t, m)

	m.InFlight().Inc()
	m.InFlight().Inc()
	m.InFlight().Dec()

	timer := m.RunDuration("fetch")
	timer.ObserveDuration()

	m.RunFinished("fetch", metrics.OutcomeOK)
	m.RunFinished("fetch", metrics.OutcomeOK)
	m.RunFinished("fetch", metrics.OutcomePanic)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["sagastore_inflight_operations"])
	assert.True(t, names["sagastore_saga_run_duration_seconds"])
	assert.True(t, names["sagastore_saga_runs_total"])

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "sagastore_saga_run_duration_seconds"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "sagastore_saga_runs_total"))
}

func TestSagaMetrics_InFlightGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetrics(reg)

	m.InFlight().Set(3)
	m.InFlight().Set(0)

	expected := `
# HELP sagastore_inflight_operations Asynchronous saga runs entered and not yet released
# TYPE sagastore_inflight_operations gauge
sagastore_inflight_operations 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sagastore_inflight_operations"))
}

func TestSagaMetrics_RunsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetrics(reg).(*sagaMetrics)

	m.RunFinished("save", metrics.OutcomeError)
	m.RunFinished("save", metrics.OutcomeError)
	m.RunFinished("save", metrics.OutcomeOK)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.runsTotal.WithLabelValues("save", metrics.OutcomeError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsTotal.WithLabelValues("save", metrics.OutcomeOK)))
}

func TestNewSagaMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewSagaMetrics(reg)
	assert.Panics(t, func() { NewSagaMetrics(reg) })
}
