package state

import (
	"context"

	"github.com/roach88/sagastore/internal/tracker"
)

// AwaitableStore is a Store that owns an operation tracker, which makes
// DispatchAsync available.
//
// Asynchronous sagas bound to an AwaitableStore open a tracker operation
// for every run; DispatchAsync waits for the count of open operations to
// reach zero.
type AwaitableStore[S any] struct {
	*Store[S]
	tracker *tracker.Tracker
}

// NewAwaitable creates a Store with a fresh tracker.
func NewAwaitable[S any](reducer Reducer[S], initial S, opts ...Option[S]) *AwaitableStore[S] {
	return Awaitable(New(reducer, initial, opts...), tracker.New())
}

// Awaitable pairs an existing store with a tracker.
func Awaitable[S any](s *Store[S], t *tracker.Tracker) *AwaitableStore[S] {
	return &AwaitableStore[S]{Store: s, tracker: t}
}

// Tracker returns the store's operation tracker.
func (s *AwaitableStore[S]) Tracker() *tracker.Tracker {
	return s.tracker
}

// DispatchAsync dispatches action and then waits for quiescence.
//
//  1. Dispatch runs synchronously. Synchronous sagas finish here; every
//     asynchronous saga triggered by the action enters the tracker here,
//     before its goroutine starts.
//  2. Wait until the tracker count is first observed at zero.
//  3. Return the dispatch result.
//
// Saga failures never surface here. The only error is ctx.Err() when ctx
// ends before quiescence; the dispatch has happened regardless and its result
// is returned alongside the error.
func (s *AwaitableStore[S]) DispatchAsync(ctx context.Context, action any) (any, error) {
	result := s.Dispatch(action)

	if err := s.tracker.FirstZero(ctx); err != nil {
		s.logger.Warn("dispatch not quiescent before context ended",
			"action", Describe(action),
			"in_flight", s.tracker.Count(),
			"error", err,
		)
		return result, err
	}
	return result, nil
}

// Outcome is the value delivered by Go.
type Outcome struct {
	Result any
	Err    error
}

// Go is DispatchAsync with a channel instead of a blocking call. The
// dispatch and the subscription to the tracker both happen before Go
// returns; only the wait is moved to another goroutine.
func (s *AwaitableStore[S]) Go(ctx context.Context, action any) <-chan Outcome {
	result := s.Dispatch(action)
	zero, stop := s.tracker.Zero()

	out := make(chan Outcome, 1)
	go func() {
		defer stop()
		select {
		case <-zero:
			out <- Outcome{Result: result}
		case <-ctx.Done():
			select {
			case <-zero:
				out <- Outcome{Result: result}
			default:
				out <- Outcome{Result: result, Err: ctx.Err()}
			}
		}
	}()
	return out
}
