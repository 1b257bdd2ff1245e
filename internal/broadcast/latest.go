package broadcast

import "sync"

// Latest holds a single value and streams it to subscribers.
//
// New subscribers receive the current value immediately, then every change
// in the order changes occur. All deliveries happen while the internal lock
// is held, which is what totally orders them. Callbacks must therefore be
// short and must not call Update, Subscribe, or an unsubscribe function of the
// same Latest.
type Latest[T any] struct {
	mu     sync.Mutex
	value  T
	nextID uint64
	subs   []subscriber[T]
}

// NewLatest creates a stream holding initial.
func NewLatest[T any](initial T) *Latest[T] {
	return &Latest[T]{value: initial}
}

// Load returns the current value.
func (l *Latest[T]) Load() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Update replaces the value with f(current), delivers the new value to every
// subscriber, and returns it.
func (l *Latest[T]) Update(f func(T) T) T {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = f(l.value)
	for _, s := range l.subs {
		s.fn(l.value)
	}
	return l.value
}

// Subscribe attaches fn, calls it with the current value before returning,
// and returns a function that detaches it.
func (l *Latest[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscriber[T]{id: id, fn: fn})
	fn(l.value)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *Latest[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached subscribers.
func (l *Latest[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
