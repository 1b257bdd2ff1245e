package testutil

import (
	"fmt"
	"sync"
)

// ScriptedIDs hands out the given IDs in order, then "<fallback>-N".
// It satisfies state.IDGenerator.
//
// Thread-safety: Generate is safe for concurrent use.
type ScriptedIDs struct {
	mu       sync.Mutex
	ids      []string
	fallback string
	n        int
}

// NewScriptedIDs returns a generator yielding ids first.
func NewScriptedIDs(fallback string, ids ...string) *ScriptedIDs {
	return &ScriptedIDs{ids: ids, fallback: fallback}
}

// Generate returns the next ID.
func (g *ScriptedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.fallback, g.n)
}

// Issued returns how many IDs were generated.
func (g *ScriptedIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
