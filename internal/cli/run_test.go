package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sagastore/internal/journal"
)

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand_Text(t *testing.T) {
	out, err := execute(t, "run", "testdata/scenarios/fetch.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: fetch")
	assert.Contains(t, out, "[1] dispatch LOAD d-1 {\"id\":1}")
	assert.Contains(t, out, "saga_finish fetch ok (on LOAD) d-1")
	assert.Contains(t, out, "resolved LOAD")
	assert.Contains(t, out, "State: LOAD=1 LOADED=1")
	assert.Contains(t, out, "in flight: 0")
	assert.Contains(t, out, "fetch: ok=1")
	assert.Contains(t, out, "✓ PASS")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", "testdata/scenarios/audit.cue")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Result.Pass)
	assert.Equal(t, int64(1), resp.Data.Result.State["PING"])
	assert.Empty(t, resp.Data.Metrics.Sagas, "sync sagas are not measured")
}

func TestRunCommand_FailureExitCode(t *testing.T) {
	out, err := execute(t, "run", "testdata/failing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ FAIL")
	assert.Contains(t, out, "0 occurrences")
	assert.Contains(t, out, "broken: error=1")
}

func TestRunCommand_FailureJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", "testdata/failing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
}

func TestRunCommand_InvalidScenario(t *testing.T) {
	_, err := execute(t, "run", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "kind must be")
}

func TestRunCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "run", "testdata/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_WritesJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	_, err := execute(t, "run", "--db", db, "testdata/scenarios/fetch.yaml")
	require.NoError(t, err)

	j, err := journal.Open(db)
	require.NoError(t, err)
	defer j.Close()

	stats, err := j.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Dispatches)
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(1), stats.Outcomes["ok"])
}
