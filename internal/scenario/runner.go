package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sagastore/internal/ir"
	"github.com/roach88/sagastore/internal/journal"
	"github.com/roach88/sagastore/internal/metrics"
	"github.com/roach88/sagastore/internal/saga"
	"github.com/roach88/sagastore/internal/state"
	"github.com/roach88/sagastore/internal/telemetry"
	"github.com/roach88/sagastore/internal/tracker"
)

// DefaultTimeout bounds awaited dispatches and the final quiescence wait
// when a scenario sets no timeout.
const DefaultTimeout = 5 * time.Second

// State counts dispatched actions by type.
type State = map[string]int64

type store = *state.AwaitableStore[State]

// reduce counts the action. It never mutates the previous map, so states
// handed out by GetState stay stable.
func reduce(s State, action any) State {
	next := make(State, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[state.Describe(action)]++
	return next
}

// Runner executes scenarios. The zero configuration runs with no journal,
// no-op metrics, no tracing, and discarded logs.
type Runner struct {
	logger  *slog.Logger
	journal *journal.Journal
	metrics metrics.SagaMetrics
	tracer  trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger passed to the store and the sagas.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithJournal records every run into j. The Runner does not close j.
func WithJournal(j *journal.Journal) Option {
	return func(r *Runner) {
		r.journal = j
	}
}

// WithMetrics instruments the tracker gauge and every async saga run.
func WithMetrics(m metrics.SagaMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer wraps every async saga run in a span.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes sc with a default Runner.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	return NewRunner().Run(ctx, sc)
}

// Run executes sc on a fresh store and evaluates its assertions.
//
// Execution:
//  1. build an AwaitableStore with sequential dispatch IDs
//  2. attach the trace recorder, then the journal, then the sagas in order
//  3. run each step; step failures are recorded and the run continues
//  4. wait for quiescence (bounded by the scenario timeout)
//  5. evaluate assertions
//
// The returned error is reserved for an invalid scenario or a cancelled ctx;
// everything else is reported in Result.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if err := Validate(sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	timeout := sc.Timeout.Std()
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	tr := tracker.New(tracker.WithGauge(r.metrics.InFlight()))
	st := state.Awaitable(state.New(reduce, State{},
		state.WithIDGenerator[State](state.NewSequenceGenerator("d")),
		state.WithLogger[State](r.logger),
		state.WithMiddleware(state.Logging[State](r.logger)),
	), tr)

	rec := newRecorder()

	// Attach order is delivery order: the dispatch event must precede the
	// saga events it causes.
	st.Actions().Subscribe(func(d state.Dispatched) {
		rec.add(TraceEvent{
			Kind:       EventDispatch,
			Action:     state.Describe(d.Action),
			DispatchID: d.ID,
			Payload:    payloadOf(d.Action),
		})
	})

	interceptors := []saga.Interceptor{
		traceInterceptor(rec),
		saga.Logging(r.logger),
		saga.Metrics(r.metrics),
	}
	if r.tracer != nil {
		interceptors = append(interceptors, telemetry.TracingWithTracer(r.tracer))
	}

	if r.journal != nil {
		jr := journal.NewRecorder(r.journal, journal.WithRecorderLogger(r.logger))
		defer jr.Close()
		jr.Attach(st)
		interceptors = append(interceptors, jr.Interceptor())
	}

	for _, spec := range sc.Sagas {
		r.bind(st, spec, rec, interceptors)
	}

	result := NewResult(sc.Name)
	for i, step := range sc.Steps {
		start := time.Now()
		err := r.runStep(ctx, st, rec, step, timeout)
		result.Steps = append(result.Steps, StepResult{Action: step.Dispatch, Elapsed: time.Since(start)})

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, ctxErr)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, step.Dispatch, err))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	result.Quiescent = tr.FirstZero(waitCtx) == nil
	cancel()

	result.State = st.GetState()
	result.Trace = rec.snapshot()

	for _, msg := range EvaluateAssertions(result, sc.Assertions) {
		result.AddError(msg)
	}

	r.logger.Debug("scenario finished",
		"scenario", sc.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
		"quiescent", result.Quiescent,
	)
	return result, nil
}

func (r *Runner) bind(st store, spec SagaSpec, rec *recorder, interceptors []saga.Interceptor) {
	opts := []saga.Option{saga.WithName(spec.Name), saga.WithLogger(r.logger)}
	if len(spec.On) > 0 {
		opts = append(opts, saga.OnType(spec.On...))
	}

	switch spec.Kind {
	case KindSync:
		saga.Bind(st, func(action any, st store) {
			rec.add(TraceEvent{Kind: EventSaga, Saga: spec.Name, Action: state.Describe(action)})
			time.Sleep(spec.Delay.Std())
			emit(st, spec.Emit)
			if spec.Panic != "" {
				panic(spec.Panic)
			}
		}, opts...)

	case KindAsync:
		opts = append(opts, saga.WithInterceptors(interceptors...))
		saga.BindAsync(st, func(ctx context.Context, action any, st store) error {
			time.Sleep(spec.Delay.Std())
			emit(st, spec.Emit)
			if spec.Panic != "" {
				panic(spec.Panic)
			}
			if spec.Fail != "" {
				return errors.New(spec.Fail)
			}
			return nil
		}, opts...)
	}
}

// emit dispatches follow-ups synchronously, so any async saga they start
// is counted before the emitting run releases its own operation.
func emit(st store, types []string) {
	for _, t := range types {
		st.Dispatch(ir.Action{Type: t, Payload: ir.IRObject{}})
	}
}

func traceInterceptor(rec *recorder) saga.Interceptor {
	return func(ctx context.Context, run saga.Run, next func(context.Context) error) error {
		action := state.Describe(run.Dispatch.Action)
		rec.add(TraceEvent{Kind: EventSagaStart, Saga: run.Saga, Action: action, DispatchID: run.Dispatch.ID})

		err := next(ctx)

		rec.add(TraceEvent{
			Kind:       EventSagaFinish,
			Saga:       run.Saga,
			Action:     action,
			DispatchID: run.Dispatch.ID,
			Outcome:    saga.Outcome(err),
		})
		return err
	}
}

func (r *Runner) runStep(ctx context.Context, st store, rec *recorder, step Step, timeout time.Duration) error {
	action, err := ir.NewAction(step.Dispatch, step.Payload)
	if err != nil {
		return err
	}

	n := max(step.Repeat, 1)
	if !step.Concurrent {
		for i := 0; i < n; i++ {
			if err := dispatch(ctx, st, rec, action, step.Await, timeout); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return dispatch(gctx, st, rec, action, step.Await, timeout)
		})
	}
	return g.Wait()
}

// dispatch sends one action. A sync saga panic is returned as an error so
// that one broken saga fails the step instead of the whole process.
func dispatch(ctx context.Context, st store, rec *recorder, action ir.Action, await bool, timeout time.Duration) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sync saga panicked: %v", p)
		}
	}()

	if !await {
		st.Dispatch(action)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := st.DispatchAsync(ctx, action); err != nil {
		return fmt.Errorf("await %s: %w", action.Type, err)
	}
	rec.add(TraceEvent{Kind: EventResolved, Action: action.Type})
	return nil
}

func payloadOf(action any) ir.IRObject {
	if a, ok := action.(ir.Action); ok && len(a.Payload) > 0 {
		return a.Payload
	}
	return nil
}
