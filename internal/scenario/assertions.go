package scenario

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is a failed assertion with enough context to debug it.
type AssertionError struct {
	Type     string       // Assertion type
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace, omitted from the message when empty
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual:   %s", e.Actual)

	if len(e.Trace) > 0 {
		buf.WriteString("\n  trace:")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "\n    [%d] %s", ev.Seq, ev.Label())
			if ev.Outcome != "" {
				fmt.Fprintf(&buf, " %s", ev.Outcome)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	case AssertQuiescent:
		return assertQuiescent(result)
	case AssertMinElapsed, AssertMaxElapsed:
		return assertElapsed(result.Steps, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceOrder checks that the events occur as a subsequence of the
// trace: each pattern must match an event after the one matched by the
// previous pattern. Other events may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for i, pattern := range a.Events {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if ev.Matches(pattern) {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("no %q after %q", pattern, previous(a.Events, i))
			if i == 0 {
				actual = fmt.Sprintf("no %q in trace", pattern)
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %s", strings.Join(a.Events, ", ")),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

func previous(events []string, i int) string {
	if i == 0 {
		return ""
	}
	return events[i-1]
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Matches(a.Event) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %q", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks a subset of the final counts. An expected count
// of zero also matches an action type that was never dispatched.
func assertFinalState(state map[string]int64, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		if got := state[k]; got != a.Expect[k] {
			mismatches = append(mismatches, fmt.Sprintf("%s=%d (want %d)", k, got, a.Expect[k]))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: formatCounts(a.Expect),
			Actual:   strings.Join(mismatches, ", "),
		}
	}
	return nil
}

func assertQuiescent(result *Result) error {
	if !result.Quiescent {
		return &AssertionError{
			Type:     AssertQuiescent,
			Expected: "no saga runs in flight after the last step",
			Actual:   "timed out waiting for in-flight runs",
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertElapsed(steps []StepResult, a Assertion) error {
	if a.Step < 0 || a.Step >= len(steps) {
		return fmt.Errorf("%s: step %d was not run", a.Type, a.Step)
	}
	got := steps[a.Step].Elapsed
	bound := a.Duration.Std()

	switch {
	case a.Type == AssertMinElapsed && got < bound:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d (%s) takes at least %s", a.Step, steps[a.Step].Action, bound),
			Actual:   got.String(),
		}
	case a.Type == AssertMaxElapsed && got > bound:
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d (%s) takes at most %s", a.Step, steps[a.Step].Action, bound),
			Actual:   got.String(),
		}
	}
	return nil
}

func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
