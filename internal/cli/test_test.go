package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, data, 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandGoldenMatch(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ fetch")
	assert.Contains(t, out, "✓ audit")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", "testdata/scenarios", "--filter", "fe*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "fetch", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyFile(t, "testdata/scenarios/fetch.yaml", filepath.Join(dir, "fetch.yaml"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "fetch.golden"), []byte("{}\n"), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandUpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	copyFile(t, "testdata/scenarios/audit.cue", filepath.Join(dir, "audit.cue"))

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "audit.golden"))
	require.NoError(t, err)
	expected, err := os.ReadFile("testdata/scenarios/golden/audit.golden")
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(written))

	_, err = execute(t, "test", dir)
	require.NoError(t, err)
}

func TestTestCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	copyFile(t, "testdata/failing.yaml", filepath.Join(dir, "failing.yaml"))
	copyFile(t, "testdata/invalid.yaml", filepath.Join(dir, "invalid.yaml"))
	copyFile(t, "testdata/scenarios/audit.cue", filepath.Join(dir, "audit.cue"))

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 2, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.Equal(t, "missing", byName["audit"].Golden)
	assert.False(t, byName["failing"].Pass)
	require.Contains(t, byName, "invalid.yaml", "unloadable files are named by file")
	assert.Contains(t, byName["invalid.yaml"].Errors[0], "failed to load scenario")
}

func TestFindScenarioFiles_SkipsGolden(t *testing.T) {
	files, err := findScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join("testdata", "scenarios", "audit.cue"),
		filepath.Join("testdata", "scenarios", "fetch.yaml"),
	}, files)

	_, err = findScenarioFiles("testdata/scenarios", "[")
	assert.Error(t, err)
}
