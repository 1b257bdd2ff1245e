package saga

import (
	"context"
	"log/slog"

	"github.com/roach88/sagastore/internal/metrics"
	"github.com/roach88/sagastore/internal/state"
)

// Metrics returns an interceptor timing every run and counting outcomes.
func Metrics(m metrics.SagaMetrics) Interceptor {
	return func(ctx context.Context, run Run, next func(context.Context) error) (err error) {
		timer := m.RunDuration(run.Saga)
		defer func() {
			timer.ObserveDuration()
			if r := recover(); r != nil {
				m.RunFinished(run.Saga, metrics.OutcomePanic)
				panic(r)
			}
			m.RunFinished(run.Saga, Outcome(err))
		}()
		return next(ctx)
	}
}

// Logging returns an interceptor that logs the start and end of every run
// at debug level.
func Logging(logger *slog.Logger) Interceptor {
	return func(ctx context.Context, run Run, next func(context.Context) error) error {
		logger.Debug("saga run started",
			"saga", run.Saga,
			"dispatch_id", run.Dispatch.ID,
			"action", state.Describe(run.Dispatch.Action),
		)
		err := next(ctx)
		logger.Debug("saga run finished",
			"saga", run.Saga,
			"dispatch_id", run.Dispatch.ID,
			"outcome", Outcome(err),
		)
		return err
	}
}
