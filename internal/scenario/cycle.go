package scenario

import (
	"fmt"
	"slices"
	"strings"
)

// findEmitCycle returns a saga path that would dispatch forever, or nil.
//
// Scripted sagas emit unconditionally, so unlike conditional sync rules any
// cycle is a guaranteed infinite loop and is rejected outright.
//
// Graph: saga -> every saga reacting to one of the types it emits. A saga
// with an empty On reacts to everything.
func findEmitCycle(sagas []SagaSpec) []string {
	graph := make(map[string][]string, len(sagas))
	for _, from := range sagas {
		for _, to := range sagas {
			if triggers(from, to) {
				graph[from.Name] = append(graph[from.Name], to.Name)
			}
		}
	}

	const (
		unvisited = iota
		onStack
		done
	)
	mark := make(map[string]int, len(sagas))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		mark[name] = onStack
		stack = append(stack, name)

		for _, next := range graph[name] {
			switch mark[next] {
			case onStack:
				start := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[start:]), next)
				return cycle
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		mark[name] = done
		return nil
	}

	for _, s := range sagas {
		if mark[s.Name] == unvisited {
			if cycle := visit(s.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// triggers reports whether an action emitted by from starts to.
func triggers(from, to SagaSpec) bool {
	if len(from.Emit) == 0 {
		return false
	}
	if len(to.On) == 0 {
		return true
	}
	for _, e := range from.Emit {
		if slices.Contains(to.On, e) {
			return true
		}
	}
	return false
}

func cycleError(cycle []string) error {
	return fmt.Errorf("sagas emit in a cycle: %s", strings.Join(cycle, " -> "))
}
