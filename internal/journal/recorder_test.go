package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sagastore/internal/ir"
	"github.com/roach88/sagastore/internal/saga"
	"github.com/roach88/sagastore/internal/state"
	"github.com/roach88/sagastore/internal/testutil"
)

type appStore = *state.AwaitableStore[int]

func newTestStore() appStore {
	return state.NewAwaitable(func(n int, _ any) int { return n + 1 }, 0,
		state.WithIDGenerator[int](state.NewSequenceGenerator("d")),
		state.WithLogger[int](testutil.DiscardLogger()),
	)
}

func mustAction(t *testing.T, typ string, payload map[string]any) ir.Action {
	t.Helper()
	a, err := ir.NewAction(typ, payload)
	require.NoError(t, err)
	return a
}

func TestRecorder_RecordsDispatchesAndRuns(t *testing.T) {
	j := createTestJournal(t)
	rec := NewRecorder(j)
	s := newTestStore()
	rec.Attach(s)

	quiet := testutil.DiscardLogger()
	saga.BindAsync(s, func(ctx context.Context, a any, _ appStore) error {
		time.Sleep(5 * time.Millisecond)
		if a.(ir.Action).Type == "SAVE" {
			return errors.New("disk full")
		}
		return nil
	}, saga.WithName("worker"), saga.WithLogger(quiet), saga.WithInterceptors(rec.Interceptor()))

	ctx := context.Background()
	_, err := s.DispatchAsync(ctx, mustAction(t, "LOAD", map[string]any{"id": 7}))
	require.NoError(t, err)
	_, err = s.DispatchAsync(ctx, mustAction(t, "SAVE", nil))
	require.NoError(t, err)

	require.NoError(t, rec.Close())

	dispatches, err := j.ReadDispatches(ctx)
	require.NoError(t, err)
	require.Len(t, dispatches, 2)
	assert.Equal(t, "d-1", dispatches[0].ID)
	assert.Equal(t, "LOAD", dispatches[0].ActionType)
	assert.Equal(t, `{"id":7}`, dispatches[0].Payload)
	assert.Len(t, dispatches[0].PayloadDigest, 64)
	assert.Equal(t, "SAVE", dispatches[1].ActionType)
	assert.Equal(t, "{}", dispatches[1].Payload)

	runs, err := j.ReadRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "d-1", runs[0].DispatchID)
	assert.Equal(t, "worker", runs[0].Saga)
	assert.Equal(t, "ok", runs[0].Outcome)
	assert.Greater(t, runs[0].StartedSeq, dispatches[0].JournalSeq)
	assert.Greater(t, runs[0].FinishedSeq, runs[0].StartedSeq)

	assert.Equal(t, "d-2", runs[1].DispatchID)
	assert.Equal(t, "error", runs[1].Outcome)
	assert.Contains(t, runs[1].Error, "disk full")
	assert.Contains(t, runs[1].Error, "HANDLER_FAILED")
}

func TestRecorder_PlainGoActions(t *testing.T) {
	j := createTestJournal(t)
	rec := NewRecorder(j)
	s := newTestStore()
	rec.Attach(s)

	type login struct {
		User string `json:"user"`
	}
	s.Dispatch(login{User: "ada"})
	s.Dispatch(func() {})

	require.NoError(t, rec.Close())

	got, err := j.ReadDispatches(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `{"user":"ada"}`, got[0].Payload)
	assert.Empty(t, got[0].PayloadDigest)
	assert.Equal(t, "null", got[1].Payload, "unencodable actions are still recorded")
}

func TestRecorder_Unsubscribe(t *testing.T) {
	j := createTestJournal(t)
	rec := NewRecorder(j)
	s := newTestStore()

	detach := rec.Attach(s)
	s.Dispatch("ONE")
	detach()
	s.Dispatch("TWO")

	require.NoError(t, rec.Close())

	got, err := j.ReadDispatches(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecorder_CloseDrainsAndIsIdempotent(t *testing.T) {
	j := createTestJournal(t)
	rec := NewRecorder(j)
	s := newTestStore()
	rec.Attach(s)

	for i := 0; i < 100; i++ {
		s.Dispatch("TICK")
	}

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	assert.Equal(t, 0, rec.Pending())

	st, err := j.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), st.Dispatches)
}

func TestRecorder_DropsAfterClose(t *testing.T) {
	j := createTestJournal(t)

	logger, buf := testutil.CaptureLogger()
	rec := NewRecorder(j, WithRecorderLogger(logger))
	s := newTestStore()
	rec.Attach(s)

	require.NoError(t, rec.Close())
	s.Dispatch("LATE")

	st, err := j.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Dispatches)
	assert.Contains(t, buf.String(), "journal closed")
}

func TestRecorder_LogsWriteFailures(t *testing.T) {
	j := createTestJournal(t)

	logger, buf := testutil.CaptureLogger()
	rec := NewRecorder(j, WithRecorderLogger(logger), WithRecorderClock(state.NewClock()))

	require.NoError(t, j.Close())
	rec.enqueue(event{kind: eventDispatch, dispatch: DispatchRecord{ID: "d-1", ActionType: "LOAD"}})
	require.NoError(t, rec.Close())

	assert.Contains(t, buf.String(), "journal write failed")
	assert.Contains(t, buf.String(), "dispatch_id=d-1")
}
