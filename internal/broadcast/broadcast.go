package broadcast

import "sync"

// subscriber pairs a callback with the id used to detach it.
type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Broadcast is a hot multicast of values of type T.
//
// Thread-safety model:
//   - Subscribe / unsubscribe: safe from any goroutine, including from inside
//     a callback
//   - Emit: runs callbacks on the caller's goroutine without holding the
//     subscriber lock, so callbacks may re-enter Emit
//
// INVARIANTS:
//   - subs is kept in attach order
//   - a subscriber never sees values emitted before it attached
type Broadcast[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

// New creates an empty broadcast.
func New[T any]() *Broadcast[T] {
	return &Broadcast[T]{}
}

// Subscribe attaches fn and returns a function that detaches it.
// The returned function is safe to call more than once.
//
// A subscriber detached while an emission is in progress may still receive
// that emission; it will not receive later ones.
func (b *Broadcast[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcast[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// Copy instead of in-place delete: snapshots taken by running
			// emissions share the old backing array.
			subs := make([]subscriber[T], 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			b.subs = append(subs, b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers v to every current subscriber, in attach order, on the
// calling goroutine. It returns once every callback has returned.
//
// A panicking callback does not stop delivery: the remaining subscribers
// still receive v, and once they have, Emit re-panics with the first
// recovered value. Later panics for the same value are dropped.
func (b *Broadcast[T]) Emit(v T) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	var first *recovered
	for _, s := range subs {
		if r := deliver(s.fn, v); r != nil && first == nil {
			first = r
		}
	}
	if first != nil {
		panic(first.value)
	}
}

// recovered boxes a panic value so that panic(nil) is still seen.
type recovered struct {
	value any
}

func deliver[T any](fn func(T), v T) (r *recovered) {
	completed := false
	defer func() {
		if !completed {
			r = &recovered{value: recover()}
		}
	}()
	fn(v)
	completed = true
	return nil
}

// Len returns the number of attached subscribers.
func (b *Broadcast[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
