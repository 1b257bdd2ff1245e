package ir

import (
	"encoding/json"
	"fmt"
)

// Action is a dispatchable action described by data rather than a Go type:
// a type name plus an object payload.
type Action struct {
	Type    string   `json:"type"`
	Payload IRObject `json:"payload"`
}

// NewAction builds an Action, converting payload with ObjectFromGo.
func NewAction(typ string, payload any) (Action, error) {
	if typ == "" {
		return Action{}, fmt.Errorf("action type is required")
	}
	obj, err := ObjectFromGo(payload)
	if err != nil {
		return Action{}, fmt.Errorf("action %s payload: %w", typ, err)
	}
	return Action{Type: typ, Payload: obj}, nil
}

// ActionType returns the action's type name.
func (a Action) ActionType() string {
	return a.Type
}

// String renders the action as TYPE{canonical payload}.
func (a Action) String() string {
	data, err := MarshalCanonical(a.payload())
	if err != nil {
		return a.Type + "{?}"
	}
	return a.Type + string(data)
}

// MarshalJSON encodes the action canonically with an always-present payload.
func (a Action) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(IRObject{
		"type":    IRString(a.Type),
		"payload": a.payload(),
	})
}

// UnmarshalJSON decodes {"type": ..., "payload": {...}}.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string   `json:"type"`
		Payload IRObject `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		return fmt.Errorf("action type is required")
	}
	a.Type = raw.Type
	a.Payload = raw.Payload
	if a.Payload == nil {
		a.Payload = IRObject{}
	}
	return nil
}

func (a Action) payload() IRObject {
	if a.Payload == nil {
		return IRObject{}
	}
	return a.Payload
}
