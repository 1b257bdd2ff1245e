// Package journal keeps a SQLite diagnostic trace of a store's dispatches
// and the outcomes of its asynchronous saga runs.
//
// The journal is a trace, never a source of truth: store state is not
// persisted and nothing is replayed from it. It answers "what was
// dispatched, which sagas ran for it, and how did they end".
//
// # Ordering
//
//   - dispatches carry the store's logical seq; for concurrent dispatchers
//     that is stamp order, which can differ from reduce order
//   - every recorded event also gets a journal_seq from the Recorder's own
//     logical clock, taken when the event happens rather than when it is
//     written, so run start/finish interleave correctly with dispatches
//   - reads use ORDER BY seq ASC, id ASC COLLATE BINARY; never timestamps
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection; all writes come from the Recorder goroutine
//
// saga_runs.dispatch_id is not a foreign key: a run can finish and be
// recorded by a Recorder that never saw the dispatch (attached late).
package journal
