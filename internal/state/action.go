package state

import "fmt"

// ActionTyper is implemented by actions that carry a type name.
type ActionTyper interface {
	ActionType() string
}

// Describe names an action for logs and traces: its ActionType if it has
// one, the string itself for string actions, otherwise its Go type.
func Describe(action any) string {
	switch a := action.(type) {
	case ActionTyper:
		return a.ActionType()
	case string:
		return a
	case fmt.Stringer:
		return a.String()
	default:
		return fmt.Sprintf("%T", action)
	}
}
