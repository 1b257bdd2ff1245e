// Package state implements the store the sagas observe: a reducer plus a
// middleware chain behind a synchronous Dispatch, and a broadcast of every
// dispatched action.
//
// # Dispatch Order
//
//  1. middleware chain, outermost first
//  2. reducer, under the state lock
//  3. Seq and ID are stamped, then Dispatched{ID, Seq, Action} is broadcast
//     to current subscribers, synchronously, in attach order
//  4. Dispatch returns the chain's result
//
// # Awaitable Stores
//
// AwaitableStore adds an operation tracker and DispatchAsync, which returns
// once every asynchronous saga triggered by the dispatch, directly or through
// follow-up dispatches, has finished. This depends on one ordering rule that
// internal/saga upholds: an asynchronous saga enters the tracker on the
// emitting goroutine, before the goroutine running it is started.
package state
