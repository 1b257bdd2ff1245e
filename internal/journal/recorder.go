package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/roach88/sagastore/internal/ir"
	"github.com/roach88/sagastore/internal/saga"
	"github.com/roach88/sagastore/internal/state"
)

// Recorder feeds a Journal from a live store.
//
// Recording happens on the caller's goroutine only as far as an in-memory
// enqueue; a single writer goroutine owns every database write. Write
// failures are logged and dropped: the journal must never slow down or fail
// a dispatch.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	journal *Journal
	queue   *eventQueue
	clock   *state.Clock
	logger  *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger for write failures.
// Default: slog.Default().
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithRecorderClock sets the clock for journal_seq. Default: a new Clock.
func WithRecorderClock(c *state.Clock) RecorderOption {
	return func(r *Recorder) {
		r.clock = c
	}
}

// NewRecorder starts a Recorder writing to j. Call Close to flush and stop
// it; Close does not close j.
func NewRecorder(j *Journal, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		journal: j,
		queue:   newEventQueue(),
		clock:   state.NewClock(),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.run()
	return r
}

// Attach records every action dispatched on src from now on. It observes
// the action broadcast directly, like a synchronous saga, because it needs
// the dispatch envelope and not only the action.
func (r *Recorder) Attach(src saga.Source) saga.Unsubscribe {
	return saga.Unsubscribe(src.Actions().Subscribe(r.recordDispatch))
}

func (r *Recorder) recordDispatch(d state.Dispatched) {
	rec := DispatchRecord{
		ID:         d.ID,
		Seq:        d.Seq,
		JournalSeq: r.clock.Next(),
		ActionType: state.Describe(d.Action),
		Payload:    "null",
	}

	if a, ok := d.Action.(ir.Action); ok {
		payload := a.Payload
		if payload == nil {
			payload = ir.IRObject{}
		}
		if data, err := ir.MarshalCanonical(payload); err == nil {
			rec.Payload = string(data)
		}
		if digest, err := ir.PayloadDigest(payload); err == nil {
			rec.PayloadDigest = digest
		}
	} else if data, err := json.Marshal(d.Action); err == nil {
		rec.Payload = string(data)
	}

	r.enqueue(event{kind: eventDispatch, dispatch: rec})
}

// Interceptor records the outcome of every asynchronous saga run it wraps.
// Install it with saga.WithInterceptors. It returns the run's error
// unchanged.
func (r *Recorder) Interceptor() saga.Interceptor {
	return func(ctx context.Context, run saga.Run, next func(context.Context) error) error {
		started := r.clock.Next()
		err := next(ctx)

		rec := RunRecord{
			DispatchID:  run.Dispatch.ID,
			Saga:        run.Saga,
			Outcome:     saga.Outcome(err),
			StartedSeq:  started,
			FinishedSeq: r.clock.Next(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		r.enqueue(event{kind: eventRun, run: rec})
		return err
	}
}

func (r *Recorder) enqueue(e event) {
	if !r.queue.Enqueue(e) {
		r.logger.Debug("journal closed, event dropped", "kind", int(e.kind))
	}
}

// Pending returns the number of events not yet written.
func (r *Recorder) Pending() int {
	return r.queue.Len()
}

// Close stops accepting events, writes everything already queued, and
// returns once the writer has exited. Safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(r.queue.Close)
	<-r.done
	return nil
}

// run is the single writer. Only this goroutine touches the database.
func (r *Recorder) run() {
	defer close(r.done)
	ctx := context.Background()

	for {
		if e, ok := r.queue.TryDequeue(); ok {
			r.write(ctx, e)
			continue
		}

		if _, open := <-r.queue.Wait(); !open && r.queue.Len() == 0 {
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e event) {
	switch e.kind {
	case eventDispatch:
		if err := r.journal.WriteDispatch(ctx, e.dispatch); err != nil {
			r.logger.Error("journal write failed",
				"dispatch_id", e.dispatch.ID,
				"action", e.dispatch.ActionType,
				"error", err,
			)
		}
	case eventRun:
		if _, err := r.journal.WriteRun(ctx, e.run); err != nil {
			r.logger.Error("journal write failed",
				"dispatch_id", e.run.DispatchID,
				"saga", e.run.Saga,
				"error", err,
			)
		}
	default:
		r.logger.Error("journal: unknown event kind", "kind", int(e.kind))
	}
}
