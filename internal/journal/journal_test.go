package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestJournal opens a file-backed journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_Pragmas(t *testing.T) {
	j := createTestJournal(t)

	assert.NoError(t, j.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, j.verifyPragma("synchronous", "1"))
	assert.NoError(t, j.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, j.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.WriteDispatch(context.Background(), DispatchRecord{ID: "d-1", Seq: 1, ActionType: "PING", Payload: "{}"}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.ReadDispatches(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpen_Memory(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	require.NoError(t, j.WriteDispatch(ctx, DispatchRecord{ID: "d-1", Seq: 1, ActionType: "PING", Payload: "{}"}))

	got, err := j.ReadDispatches(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpen_MigratesV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE dispatches (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			journal_seq INTEGER NOT NULL,
			action_type TEXT NOT NULL,
			payload TEXT NOT NULL
		);
		INSERT INTO dispatches VALUES ('old-1', 1, 1, 'LEGACY', '{}');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	assert.NoError(t, j.verifyPragma("user_version", "1"))

	d, err := j.ReadDispatch(context.Background(), "old-1")
	require.NoError(t, err)
	assert.Equal(t, "LEGACY", d.ActionType)
	assert.Empty(t, d.PayloadDigest)
}

func TestWriteDispatch_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	d := DispatchRecord{ID: "d-1", Seq: 1, JournalSeq: 1, ActionType: "LOAD", Payload: `{"id":1}`}
	require.NoError(t, j.WriteDispatch(ctx, d))

	dup := d
	dup.ActionType = "CHANGED"
	require.NoError(t, j.WriteDispatch(ctx, dup))

	got, err := j.ReadDispatch(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestReadDispatches_OrderedBySeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for _, d := range []DispatchRecord{
		{ID: "c", Seq: 3, ActionType: "C", Payload: "{}"},
		{ID: "a", Seq: 1, ActionType: "A", Payload: "{}"},
		{ID: "b", Seq: 2, ActionType: "B", Payload: "{}"},
	} {
		require.NoError(t, j.WriteDispatch(ctx, d))
	}

	got, err := j.ReadDispatches(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestReadDispatches_EmptyNotNil(t *testing.T) {
	j := createTestJournal(t)

	got, err := j.ReadDispatches(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadDispatch_NotFound(t *testing.T) {
	j := createTestJournal(t)

	_, err := j.ReadDispatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteRun_RejectsUnknownOutcome(t *testing.T) {
	j := createTestJournal(t)

	_, err := j.WriteRun(context.Background(), RunRecord{DispatchID: "d-1", Saga: "s", Outcome: "maybe"})
	assert.Error(t, err)
}

func TestReadRuns_FilterAndStats(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.WriteDispatch(ctx, DispatchRecord{ID: "d-1", Seq: 1, ActionType: "LOAD", Payload: "{}"}))
	require.NoError(t, j.WriteDispatch(ctx, DispatchRecord{ID: "d-2", Seq: 2, ActionType: "SAVE", Payload: "{}"}))

	runs := []RunRecord{
		{DispatchID: "d-1", Saga: "fetch", Outcome: "ok", StartedSeq: 2, FinishedSeq: 5},
		{DispatchID: "d-1", Saga: "audit", Outcome: "error", Error: "boom", StartedSeq: 1, FinishedSeq: 3},
		{DispatchID: "d-2", Saga: "fetch", Outcome: "panic", Error: "bad", StartedSeq: 6, FinishedSeq: 7},
	}
	for _, r := range runs {
		id, err := j.WriteRun(ctx, r)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	got, err := j.ReadRuns(ctx, "d-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "audit", got[0].Saga, "ordered by started_seq")
	assert.Equal(t, "boom", got[0].Error)
	assert.Equal(t, "fetch", got[1].Saga)

	all, err := j.ReadRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	st, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Dispatches: 2,
		Runs:       3,
		Outcomes:   map[string]int64{"ok": 1, "error": 1, "panic": 1},
		Sagas:      map[string]int64{"fetch": 2, "audit": 1},
	}, st)
}
