// Package tracker counts in-flight asynchronous operations and lets callers
// wait for quiescence, the first instant at which that count is zero.
//
// The counter is the only join point between a dispatch and the saga runs it
// triggers. There is no registry of individual runs: every run opens a scoped
// Operation with Enter and closes it with Release, and waiters watch the
// count.
//
// ORDERING:
// Changes to the count are totally ordered. Subscribers see every change in
// that order, but a slow channel consumer (Changes) may only see the newest
// value, so a 1→0→1 sequence can collapse to "still nonzero". FirstZero does
// not have that problem: it observes 0 synchronously inside the change.
package tracker

import (
	"context"
	"sync"

	"github.com/roach88/sagastore/internal/broadcast"
	"github.com/roach88/sagastore/internal/metrics"
)

// Tracker is a shared in-flight operation counter.
//
// Thread-safety: all methods are safe for concurrent use.
//
// INVARIANTS:
//   - count equals the number of Operations entered and not yet released
//   - count is mutated only by Enter and Operation.Release
type Tracker struct {
	count *broadcast.Latest[int64]
	gauge metrics.Gauge
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithGauge mirrors the count into g.
func WithGauge(g metrics.Gauge) Option {
	return func(t *Tracker) {
		t.gauge = g
	}
}

// New creates a Tracker with count 0.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		count: broadcast.NewLatest[int64](0),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.gauge != nil {
		// Set from inside the change keeps the gauge in step with the count.
		t.count.Subscribe(func(n int64) { t.gauge.Set(float64(n)) })
	}
	return t
}

// Operation is the handle for one scoped acquisition. It belongs to the call
// site that entered it, which must call Release exactly once on every exit
// path, normally with defer.
type Operation struct {
	t *Tracker
}

// Enter increments the count and returns the handle that decrements it.
func (t *Tracker) Enter() *Operation {
	t.count.Update(func(n int64) int64 { return n + 1 })
	return &Operation{t: t}
}

// Release decrements the count.
//
// Releasing the same Operation twice is a caller bug. It is not detected
// unless the count goes negative, in which case Release panics on the
// releasing goroutine. Nothing recovers that panic: inside a saga run's
// goroutine it terminates the program.
func (op *Operation) Release() {
	n := op.t.count.Update(func(n int64) int64 { return n - 1 })
	if n < 0 {
		panic("tracker: negative operation count")
	}
}

// Count returns the number of open operations.
func (t *Tracker) Count() int64 {
	return t.count.Load()
}

// Subscribe calls fn with the current count, then with every new count in
// the order the changes happen. fn runs while the count is locked: it must
// not call Enter, Release, or another Tracker method.
func (t *Tracker) Subscribe(fn func(n int64)) (unsubscribe func()) {
	return t.count.Subscribe(fn)
}

// Changes returns a channel carrying the current count followed by later
// counts. The channel holds at most one value; when the consumer falls
// behind, older values are dropped in favour of the newest one.
//
// The channel is never closed; call stop to detach it.
func (t *Tracker) Changes() (values <-chan int64, stop func()) {
	ch := make(chan int64, 1)
	stop = t.count.Subscribe(func(n int64) {
		for {
			select {
			case ch <- n:
				return
			default:
			}
			// Buffer full: drop the stale value and retry.
			select {
			case <-ch:
			default:
			}
		}
	})
	return ch, stop
}

// Zero returns a channel that is closed the first time, from now on, that
// the count is 0. If the count is already 0 the channel is closed before Zero
// returns. Call stop once the channel is no longer needed.
func (t *Tracker) Zero() (zero <-chan struct{}, stop func()) {
	ch := make(chan struct{})
	var once sync.Once
	stop = t.count.Subscribe(func(n int64) {
		if n == 0 {
			once.Do(func() { close(ch) })
		}
	})
	return ch, stop
}

// FirstZero blocks until the count is first observed equal to 0 after the
// call, returning immediately if it is 0 already.
//
// It returns ctx.Err() if ctx ends first. Pass context.Background() to wait
// indefinitely.
func (t *Tracker) FirstZero(ctx context.Context) error {
	zero, stop := t.Zero()
	defer stop()

	select {
	case <-zero:
		return nil
	case <-ctx.Done():
		// Quiescence reached in the same instant wins over cancellation.
		select {
		case <-zero:
			return nil
		default:
		}
		return ctx.Err()
	}
}
