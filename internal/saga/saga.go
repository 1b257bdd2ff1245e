package saga

import (
	"context"
	"log/slog"
	"reflect"
	"runtime"
	"runtime/debug"

	"github.com/roach88/sagastore/internal/broadcast"
	"github.com/roach88/sagastore/internal/state"
	"github.com/roach88/sagastore/internal/tracker"
)

// Source is a store whose actions can be observed.
type Source interface {
	Actions() *broadcast.Broadcast[state.Dispatched]
}

// Tracked is a Source that can count asynchronous saga runs.
// state.AwaitableStore implements it.
type Tracked interface {
	Tracker() *tracker.Tracker
}

// Unsubscribe detaches a binding. Runs already started are not affected.
type Unsubscribe func()

// Handler is a synchronous saga.
type Handler[S Source] func(action any, store S)

// AsyncHandler is an asynchronous saga. ctx is never cancelled; it carries
// the Run (see RunFrom).
type AsyncHandler[S Source] func(ctx context.Context, action any, store S) error

// Run identifies one invocation of an asynchronous saga.
type Run struct {
	Saga     string
	Dispatch state.Dispatched
}

// Interceptor wraps an asynchronous saga run. Call next to continue the
// chain; whatever next returns is the run's outcome unless the interceptor
// replaces it.
type Interceptor func(ctx context.Context, run Run, next func(context.Context) error) error

type config struct {
	name         string
	logger       *slog.Logger
	filter       func(action any) bool
	interceptors []Interceptor
}

// Option configures a binding.
type Option func(*config)

// WithName names the saga in logs, errors, and interceptors.
// Default: the handler's function name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger for run failures. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithFilter restricts the saga to actions for which match returns true.
// Actions that do not match never reach the handler and, for asynchronous
// sagas, never touch the tracker.
func WithFilter(match func(action any) bool) Option {
	return func(c *config) {
		c.filter = match
	}
}

// OnType is a WithFilter matching actions whose state.Describe name is one
// of types.
func OnType(types ...string) Option {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return WithFilter(func(action any) bool {
		_, ok := set[state.Describe(action)]
		return ok
	})
}

// WithInterceptors wraps every asynchronous run, outermost first.
// Ignored by Bind.
func WithInterceptors(in ...Interceptor) Option {
	return func(c *config) {
		c.interceptors = append(c.interceptors, in...)
	}
}

func newConfig(handler any, opts []Option) *config {
	c := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = funcName(handler)
	}
	return c
}

func (c *config) matches(action any) bool {
	return c.filter == nil || c.filter(action)
}

// Bind attaches a synchronous saga. handler runs once per dispatched action,
// in dispatch order, on the dispatching goroutine; Dispatch does not return
// until it has.
//
// A panic in handler propagates out of the Dispatch that triggered it, once
// the bindings attached after this one have also received the action.
func Bind[S Source](store S, handler Handler[S], opts ...Option) Unsubscribe {
	cfg := newConfig(handler, opts)

	return Unsubscribe(store.Actions().Subscribe(func(d state.Dispatched) {
		if !cfg.matches(d.Action) {
			return
		}
		handler(d.Action, store)
	}))
}

// BindAsync attaches an asynchronous saga. Every dispatched action starts a
// new goroutine running handler; runs are neither serialized nor cancelled
// by later runs.
//
// When store is Tracked, each run is a scoped tracker operation: Enter
// happens on the dispatching goroutine before the run's goroutine is
// started, and Release is deferred inside it, so it happens whether handler
// returns, fails, or panics. Other stores run handler with no tracking.
//
// Errors and panics are confined to the run: they are logged, reported to
// interceptors as *Error, and never retried or surfaced to the dispatcher.
//
// The deferred Release runs outside that confinement. If other code sharing
// the tracker released an Operation twice, the count can go negative here and
// the tracker's panic crashes the process, as with sync.WaitGroup.
func BindAsync[S Source](store S, handler AsyncHandler[S], opts ...Option) Unsubscribe {
	cfg := newConfig(handler, opts)

	var tr *tracker.Tracker
	if t, ok := any(store).(Tracked); ok {
		tr = t.Tracker()
	}

	return Unsubscribe(store.Actions().Subscribe(func(d state.Dispatched) {
		if !cfg.matches(d.Action) {
			return
		}

		// Must happen before the go statement: a DispatchAsync caller starts
		// watching the tracker as soon as Dispatch returns.
		var op *tracker.Operation
		if tr != nil {
			op = tr.Enter()
		}

		go func() {
			if op != nil {
				defer op.Release()
			}
			execute(cfg, Run{Saga: cfg.name, Dispatch: d}, func(ctx context.Context) error {
				return handler(ctx, d.Action, store)
			})
		}()
	}))
}

// execute runs one asynchronous invocation through the interceptor chain.
func execute(cfg *config, run Run, handler func(context.Context) error) {
	ctx := withRun(context.Background(), run)

	next := guard(run, handler)
	for i := len(cfg.interceptors) - 1; i >= 0; i-- {
		in, inner := cfg.interceptors[i], next
		next = func(ctx context.Context) error {
			return in(ctx, run, inner)
		}
	}

	if err := guard(run, next)(ctx); err != nil {
		cfg.logger.Error("saga run failed",
			"saga", run.Saga,
			"dispatch_id", run.Dispatch.ID,
			"seq", run.Dispatch.Seq,
			"action", state.Describe(run.Dispatch.Action),
			"error", err,
		)
	}
}

// guard converts a failure of fn into *Error, recovering panics.
func guard(run Run, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(run, r, string(debug.Stack()))
			}
		}()
		if err := fn(ctx); err != nil {
			return wrapError(run, err)
		}
		return nil
	}
}

// funcName returns the name of a func value for default saga names.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "saga"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "saga"
}

type runKey struct{}

func withRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// RunFrom returns the Run carried by an asynchronous handler's context.
func RunFrom(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runKey{}).(Run)
	return run, ok
}
