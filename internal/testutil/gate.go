package testutil

import (
	"context"
	"sync"
	"sync/atomic"
)

// Gate holds goroutines at Wait until Open is called. It counts how many
// are currently waiting so a test can tell that a handler really started.
type Gate struct {
	open    chan struct{}
	once    sync.Once
	waiting atomic.Int64
	arrived chan struct{}
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{
		open:    make(chan struct{}),
		arrived: make(chan struct{}, 1024),
	}
}

// Wait blocks until the gate opens or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	select {
	case g.arrived <- struct{}{}:
	default:
	}

	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Arrived returns a channel receiving one value per Wait call.
func (g *Gate) Arrived() <-chan struct{} {
	return g.arrived
}

// Waiting returns how many goroutines are blocked in Wait.
func (g *Gate) Waiting() int64 {
	return g.waiting.Load()
}

// Open releases every current and future waiter. Safe to call twice.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.open) })
}
