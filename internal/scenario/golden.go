package scenario

import (
	"context"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sagastore/internal/ir"
)

// GoldenDir is where golden snapshots live, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot is the timing-independent part of a Result. Async runs and
// concurrent dispatches interleave differently on every execution, so
// the snapshot keeps only sorted multisets and final counts, never seqs,
// IDs, or elapsed times.
type Snapshot struct {
	Scenario  string
	Pass      bool
	Quiescent bool
	State     map[string]int64

	// Runs has one "saga action outcome" entry per finished async run.
	Runs []string

	// Sync has one "saga action" entry per sync saga invocation.
	Sync []string
}

// NewSnapshot extracts the snapshot of r.
func NewSnapshot(r *Result) Snapshot {
	s := Snapshot{
		Scenario:  r.Name,
		Pass:      r.Pass,
		Quiescent: r.Quiescent,
		State:     r.State,
		Runs:      []string{},
		Sync:      []string{},
	}
	for _, ev := range r.Trace {
		switch ev.Kind {
		case EventSagaFinish:
			s.Runs = append(s.Runs, ev.Saga+" "+ev.Action+" "+ev.Outcome)
		case EventSaga:
			s.Sync = append(s.Sync, ev.Saga+" "+ev.Action)
		}
	}
	sort.Strings(s.Runs)
	sort.Strings(s.Sync)
	return s
}

// Canonical encodes the snapshot as canonical JSON followed by a newline.
func (s Snapshot) Canonical() ([]byte, error) {
	state := make(map[string]any, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}

	data, err := ir.MarshalCanonical(map[string]any{
		"scenario":  s.Scenario,
		"pass":      s.Pass,
		"quiescent": s.Quiescent,
		"state":     state,
		"runs":      anySlice(s.Runs),
		"sync":      anySlice(s.Sync),
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// AssertGolden compares the snapshot of result against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/scenario -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(result).Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// RunWithGolden runs sc with r and compares the result against the
// scenario's golden file.
func RunWithGolden(t *testing.T, r *Runner, sc *Scenario) (*Result, error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	result, err := r.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, sc.Name, result)
}
