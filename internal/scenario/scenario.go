package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Scenario is one declarative saga run.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description" json:"description"`

	// Sagas are bound to the store in the listed order.
	Sagas []SagaSpec `yaml:"sagas" json:"sagas"`

	// Steps are executed one after another.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions are checked after the final quiescence wait.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`

	// Timeout bounds every awaited dispatch and the final quiescence wait.
	// Default: DefaultTimeout.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Saga kinds.
const (
	KindSync  = "sync"
	KindAsync = "async"
)

// SagaSpec declares a saga with scripted behavior.
type SagaSpec struct {
	Name string `yaml:"name" json:"name"`

	// Kind is KindSync or KindAsync.
	Kind string `yaml:"kind" json:"kind"`

	// On lists the action types the saga reacts to. Empty means all.
	On []string `yaml:"on,omitempty" json:"on,omitempty"`

	// Delay is slept before emitting. For a sync saga it blocks Dispatch.
	Delay Duration `yaml:"delay,omitempty" json:"delay,omitempty"`

	// Emit lists follow-up action types dispatched after the delay.
	Emit []string `yaml:"emit,omitempty" json:"emit,omitempty"`

	// Fail makes an async run return an error with this message.
	Fail string `yaml:"fail,omitempty" json:"fail,omitempty"`

	// Panic makes the saga panic with this message.
	Panic string `yaml:"panic,omitempty" json:"panic,omitempty"`
}

// Step dispatches one action, possibly several times.
type Step struct {
	// Dispatch is the action type.
	Dispatch string `yaml:"dispatch" json:"dispatch"`

	// Payload becomes the ir.Action payload. Floats are rejected.
	Payload map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`

	// Await uses DispatchAsync and records a "resolved" event.
	Await bool `yaml:"await,omitempty" json:"await,omitempty"`

	// Repeat dispatches the action this many times. Default 1.
	Repeat int `yaml:"repeat,omitempty" json:"repeat,omitempty"`

	// Concurrent runs the repeats in parallel instead of in sequence.
	Concurrent bool `yaml:"concurrent,omitempty" json:"concurrent,omitempty"`
}

// Assertion types.
const (
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
	AssertFinalState = "final_state"
	AssertQuiescent  = "quiescent"
	AssertMinElapsed = "min_elapsed"
	AssertMaxElapsed = "max_elapsed"
)

// Assertion checks the result of a run.
type Assertion struct {
	Type string `yaml:"type" json:"type"`

	// Events is the expected label order (trace_order).
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// Event is the label to count (trace_count).
	Event string `yaml:"event,omitempty" json:"event,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Expect is a subset of the final action counts (final_state).
	Expect map[string]int64 `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Step indexes Scenario.Steps (min_elapsed, max_elapsed).
	Step int `yaml:"step,omitempty" json:"step,omitempty"`

	// Duration is the bound (min_elapsed, max_elapsed).
	Duration Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// LoadError is a scenario file error, with a source position when the
// decoder reported one.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsScenarioFile reports whether path has a scenario extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// Load reads a scenario file, choosing the decoder by extension, and
// validates it.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		sc, err = ParseYAML(data)
	case ".cue":
		sc, err = ParseCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Message: "unsupported scenario extension (want .yaml, .yml, or .cue)"}
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Path == "" {
			le.Path = path
		}
		return nil, err
	}
	return sc, nil
}

// ParseYAML decodes and validates a YAML scenario. Unknown fields are
// rejected so that typos fail loudly.
func ParseYAML(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("parse YAML: %v", err)}
	}

	if err := Validate(&sc); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("invalid scenario: %v", err)}
	}
	return &sc, nil
}

// ParseCUE evaluates a CUE scenario, exports it as JSON, and decodes that
// with unknown fields rejected. filename is used in error positions.
func ParseCUE(filename string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	exported, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var sc Scenario
	dec := json.NewDecoder(bytes.NewReader(exported))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&sc); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("decode CUE: %v", err)}
	}

	if err := Validate(&sc); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("invalid scenario: %v", err)}
	}
	return &sc, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Validate checks required fields and cross references.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Sagas))
	for i, sg := range s.Sagas {
		if sg.Name == "" {
			return fmt.Errorf("sagas[%d]: name is required", i)
		}
		if names[sg.Name] {
			return fmt.Errorf("sagas[%d]: duplicate saga name %q", i, sg.Name)
		}
		names[sg.Name] = true

		switch sg.Kind {
		case KindSync:
			if sg.Fail != "" {
				return fmt.Errorf("sagas[%d]: fail is only supported for async sagas (use panic)", i)
			}
		case KindAsync:
		default:
			return fmt.Errorf("sagas[%d]: kind must be %q or %q, got %q", i, KindSync, KindAsync, sg.Kind)
		}

		if sg.Fail != "" && sg.Panic != "" {
			return fmt.Errorf("sagas[%d]: fail and panic are mutually exclusive", i)
		}
		for j, e := range sg.Emit {
			if e == "" {
				return fmt.Errorf("sagas[%d].emit[%d]: action type is required", i, j)
			}
		}
	}

	if cycle := findEmitCycle(s.Sagas); cycle != nil {
		return cycleError(cycle)
	}

	for i, st := range s.Steps {
		if st.Dispatch == "" {
			return fmt.Errorf("steps[%d]: dispatch is required", i)
		}
		if st.Repeat < 0 {
			return fmt.Errorf("steps[%d]: repeat must be non-negative", i)
		}
		if st.Concurrent && st.Repeat < 2 {
			return fmt.Errorf("steps[%d]: concurrent needs repeat >= 2", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, steps int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least two events", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertQuiescent:
	case AssertMinElapsed, AssertMaxElapsed:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
		if a.Duration == 0 && a.Type == AssertMaxElapsed {
			return fmt.Errorf("assertions[%d]: duration is required for max_elapsed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
