package scenario

import (
	"strings"
	"sync"
	"time"

	"github.com/roach88/sagastore/internal/ir"
	"github.com/roach88/sagastore/internal/state"
)

// Trace event kinds.
const (
	EventDispatch   = "dispatch"
	EventSaga       = "saga"
	EventSagaStart  = "saga_start"
	EventSagaFinish = "saga_finish"
	EventResolved   = "resolved"
)

// TraceEvent is one observed event.
type TraceEvent struct {
	Seq        int64       `json:"seq"`
	Kind       string      `json:"kind"`
	Action     string      `json:"action"`
	Saga       string      `json:"saga,omitempty"`
	DispatchID string      `json:"dispatch_id,omitempty"`
	Outcome    string      `json:"outcome,omitempty"`
	Payload    ir.IRObject `json:"payload,omitempty"`
}

// Label is the event's assertion label: "<kind> <name>" where name is the
// saga for saga events and the action type otherwise.
func (e TraceEvent) Label() string {
	if e.Saga != "" {
		return e.Kind + " " + e.Saga
	}
	return e.Kind + " " + e.Action
}

// Matches reports whether pattern names this event. A pattern is either
// the label or, for finished runs, the label followed by the outcome.
func (e TraceEvent) Matches(pattern string) bool {
	pattern = strings.Join(strings.Fields(pattern), " ")
	label := e.Label()
	if pattern == label {
		return true
	}
	return e.Outcome != "" && pattern == label+" "+e.Outcome
}

// StepResult is the timing of one step.
type StepResult struct {
	Action  string        `json:"action"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true when no step failed and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every event in seq order.
	Trace []TraceEvent `json:"trace"`

	// Steps has one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// State is the final action count per type.
	State map[string]int64 `json:"state"`

	// Quiescent is true when the final wait saw the tracker reach zero.
	Quiescent bool `json:"quiescent"`

	// Errors holds step failures and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult returns a passing, empty result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepResult{},
		State:  map[string]int64{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// recorder collects trace events from the dispatching goroutine and from
// saga goroutines.
type recorder struct {
	mu     sync.Mutex
	clock  *state.Clock
	events []TraceEvent
}

func newRecorder() *recorder {
	return &recorder{clock: state.NewClock()}
}

// add stamps e with the next seq under the lock, so seq order and slice
// order agree.
func (r *recorder) add(e TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = r.clock.Next()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
