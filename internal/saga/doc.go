// Package saga binds side-effect handlers to a store's action broadcast.
//
// Bind attaches a synchronous saga: it runs on the dispatching goroutine, in
// dispatch order, and its panics propagate out of Dispatch after every other
// binding has seen the action.
//
// BindAsync attaches an asynchronous saga: every action starts an
// independent goroutine. On a Tracked store (state.AwaitableStore) each run
// is a scoped tracker operation:
//
//	op := tracker.Enter()          // on the dispatching goroutine
//	go func() {
//	    defer op.Release()         // on every exit path
//	    handler(ctx, action, store)
//	}()
//
// Entering before the go statement is what lets DispatchAsync wait for runs
// it cannot see: by the time Dispatch returns, every run it triggered is
// already counted. A run that dispatches follow-up actions enters their runs
// before it releases its own, so the count cannot touch zero in between.
//
// Run failures are confined to the run. They are recovered, logged, and
// handed to interceptors as *Error; nothing is retried.
package saga
