package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatest_ReplaysCurrentValue(t *testing.T) {
	l := NewLatest(7)

	var got []int
	l.Subscribe(func(v int) { got = append(got, v) })

	assert.Equal(t, []int{7}, got)
}

func TestLatest_DeliversChangesInOrder(t *testing.T) {
	l := NewLatest(0)

	var got []int
	l.Subscribe(func(v int) { got = append(got, v) })

	l.Update(func(v int) int { return v + 1 })
	l.Update(func(v int) int { return v + 1 })
	l.Update(func(v int) int { return v - 2 })

	assert.Equal(t, []int{0, 1, 2, 0}, got)
	assert.Equal(t, 0, l.Load())
}

func TestLatest_Unsubscribe(t *testing.T) {
	l := NewLatest("a")

	var got []string
	unsubscribe := l.Subscribe(func(v string) { got = append(got, v) })
	unsubscribe()
	l.Update(func(string) string { return "b" })

	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 0, l.Len())
}

func TestLatest_ConcurrentUpdatesAreTotallyOrdered(t *testing.T) {
	l := NewLatest(0)

	var mu sync.Mutex
	var got []int
	l.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, l.Load())
	// Every delivered value is one more than the previous: no delivery was
	// reordered relative to the change that produced it.
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
