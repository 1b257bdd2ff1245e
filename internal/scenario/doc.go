// Package scenario runs declarative saga scenarios against a real
// AwaitableStore and checks what happened.
//
// # Scenario Format
//
// Scenarios are YAML (.yaml, .yml) or CUE (.cue) files:
//
//	name: load_waits_for_fetch
//	description: "DispatchAsync resolves only after the fetch saga"
//	sagas:
//	  - name: fetch
//	    kind: async          # sync | async
//	    on: [LOAD]           # action types; empty means every action
//	    delay: 50ms
//	    emit: [LOADED]       # dispatched by the saga after the delay
//	    fail: "message"      # async only: return an error
//	    panic: "message"     # panic instead of returning
//	steps:
//	  - dispatch: LOAD
//	    payload: { id: 1 }
//	    await: true          # DispatchAsync instead of Dispatch
//	    repeat: 3
//	    concurrent: true     # the repeats run in parallel
//	assertions:
//	  - type: trace_order
//	    events: ["dispatch LOAD", "saga_finish fetch", "resolved LOAD"]
//	  - type: final_state
//	    expect: { LOAD: 1, LOADED: 1 }
//
// # State
//
// The store state is a map from action type to the number of times it was
// dispatched. Every action, including saga follow-ups, is an ir.Action.
//
// # Trace
//
// Every run records a trace with its own logical seq. Event labels used by
// assertions are "<kind> <name>", optionally followed by an outcome:
//
//   - dispatch LOAD: an action went through the reducer
//   - saga audit: a synchronous saga ran
//   - saga_start fetch / saga_finish fetch ok: an asynchronous run
//   - resolved LOAD: an awaited dispatch resolved
//
// # Assertion Types
//
//   - trace_order: labels occur in this order (gaps allowed)
//   - trace_count: a label occurs exactly count times
//   - final_state: subset match on the action counts
//   - quiescent: no saga run was still open when the scenario ended
//   - min_elapsed / max_elapsed: bounds on one step's wall time
//
// # Determinism
//
// Dispatch IDs come from a sequence generator ("d-1", "d-2", ...). Golden
// snapshots keep only what scheduling cannot reorder; see Snapshot.
package scenario
