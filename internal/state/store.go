package state

import (
	"log/slog"
	"sync"

	"github.com/roach88/sagastore/internal/broadcast"
)

// Reducer computes the next state from the current state and an action.
// Reducers must be pure: no dispatching, no blocking.
type Reducer[S any] func(state S, action any) S

// DispatchFunc is one link of the dispatch chain.
type DispatchFunc func(action any) any

// API is the view of the store handed to middleware.
type API[S any] interface {
	GetState() S
	Dispatch(action any) any
}

// Middleware wraps the dispatch chain. The first middleware passed to
// WithMiddleware is the outermost.
type Middleware[S any] func(api API[S]) func(next DispatchFunc) DispatchFunc

// Dispatched is what the action broadcast carries for every dispatch: the
// action, unchanged, stamped with the dispatch ID and logical sequence
// number.
//
// Seq is taken when the middleware chain returns, not inside the reducer.
// Dispatches made from one goroutine, nested ones included, get Seq in the
// order they were reduced. Across concurrent dispatchers Seq is unique but
// may disagree with the order the reducer saw them in.
type Dispatched struct {
	ID     string
	Seq    int64
	Action any
}

// Store is a unidirectional state container with an action broadcast.
//
// Dispatch runs the middleware chain and reducer to completion first, and
// only then emits the action on Actions(). Subscribers run synchronously on
// the dispatching goroutine before Dispatch returns.
//
// Thread-safety model:
//   - Dispatch, GetState: safe from any goroutine
//   - the reducer runs under the state lock, one action at a time
//   - emission does not hold the state lock, so subscribers may dispatch
type Store[S any] struct {
	mu      sync.RWMutex
	state   S
	reducer Reducer[S]

	chain      DispatchFunc
	middleware []Middleware[S]

	actions *broadcast.Broadcast[Dispatched]
	clock   *Clock
	ids     IDGenerator
	logger  *slog.Logger
}

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithMiddleware appends middleware to the dispatch chain.
func WithMiddleware[S any](mw ...Middleware[S]) Option[S] {
	return func(s *Store[S]) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithIDGenerator sets the dispatch ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator[S any](g IDGenerator) Option[S] {
	return func(s *Store[S]) {
		s.ids = g
	}
}

// WithClock sets the logical clock used for Dispatched.Seq.
func WithClock[S any](c *Clock) Option[S] {
	return func(s *Store[S]) {
		s.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(s *Store[S]) {
		s.logger = l
	}
}

// New creates a Store holding initial.
func New[S any](reducer Reducer[S], initial S, opts ...Option[S]) *Store[S] {
	s := &Store[S]{
		state:   initial,
		reducer: reducer,
		actions: broadcast.New[Dispatched](),
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.chain = s.reduce
	for i := len(s.middleware) - 1; i >= 0; i-- {
		s.chain = s.middleware[i](s)(s.chain)
	}

	return s
}

// reduce is the innermost link of the chain.
func (s *Store[S]) reduce(action any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.reducer(s.state, action)
	return action
}

// GetState returns the current state.
func (s *Store[S]) GetState() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch runs action through the middleware chain and reducer, then
// broadcasts it, and returns the chain's result.
//
// A panic raised by a synchronous subscriber propagates out of Dispatch.
func (s *Store[S]) Dispatch(action any) any {
	result := s.chain(action)

	d := s.clock.Stamp(s.ids, action)
	s.logger.Debug("action dispatched",
		"dispatch_id", d.ID,
		"seq", d.Seq,
		"action", Describe(action),
		"subscribers", s.actions.Len(),
	)
	s.actions.Emit(d)

	return result
}

// Actions is the broadcast of every dispatched action.
func (s *Store[S]) Actions() *broadcast.Broadcast[Dispatched] {
	return s.actions
}

// Logger returns the store's logger.
func (s *Store[S]) Logger() *slog.Logger {
	return s.logger
}

// Logging returns middleware that logs every action before it reaches the
// reducer.
func Logging[S any](logger *slog.Logger) Middleware[S] {
	return func(api API[S]) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(action any) any {
				logger.Debug("reducing action", "action", Describe(action))
				return next(action)
			}
		}
	}
}
