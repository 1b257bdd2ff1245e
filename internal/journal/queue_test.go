package journal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(event{kind: eventDispatch, dispatch: DispatchRecord{ID: id}}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.dispatch.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(event{kind: eventRun})
	q.Enqueue(event{kind: eventRun})

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signals must coalesce into one")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	require.True(t, q.Enqueue(event{kind: eventRun}))

	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(event{kind: eventRun}), "closed queue rejects events")

	_, open := <-q.Wait()
	assert.False(t, open)

	_, ok := q.TryDequeue()
	assert.True(t, ok, "events queued before Close remain")
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(event{kind: eventRun})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, q.Len())
}
