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

const servedScenario = `name: served
description: "Cash order completes when served"
order:
  id: ord-1
  paymentStatus: SUCCESS
  qrStatus: NONE
  orderStatus: PENDING
  createdAt: "2026-03-14T13:00:00Z"
  userId: user-1
  cafeteriaId: caf-1
  paymentType: CASH
expect:
  state: AWAITING_QR
steps:
  - name: served
    set:
      orderStatus: SERVED
    expect:
      state: COMPLETED
      terminal: true
`

const wrongScenario = `name: wrong
description: "Expects the wrong state"
order:
  id: ord-2
  paymentStatus: PENDING
  qrStatus: NONE
  orderStatus: PENDING
steps:
  - name: paid
    set:
      paymentStatus: SUCCESS
    expect:
      state: COMPLETED
`

func newTestCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := newTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := newTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, err := newTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, err := newTestCmd(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "served.yaml", servedScenario)

	buf, err := newTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\u2713 served")
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "served.yaml", servedScenario)
	writeFile(t, dir, "wrong.yaml", wrongScenario)

	buf, err := newTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	for _, s := range resp.Data.Scenarios {
		if s.Name == "wrong" {
			assert.False(t, s.Pass)
			assert.NotEmpty(t, s.Errors)
		}
	}
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "served.yaml", servedScenario)
	writeFile(t, dir, "wrong.yaml", wrongScenario)

	buf, err := newTestCmd(t, "text", dir, "--filter", "serv*")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	buf, err := newTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestTestCommandGoldenUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "served.yaml", servedScenario)

	buf, err := newTestCmd(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "golden updated")

	goldenPath := filepath.Join(dir, "golden", "served.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"served"`)

	_, err = newTestCmd(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"served","trace":[]}`), 0644))
	buf, err = newTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "notes.txt", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "served.golden"), goldenFilePath(filepath.Join("scenarios", "served.yaml")))
}
