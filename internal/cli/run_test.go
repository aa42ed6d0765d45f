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

const nestedScenario = `
name: nested_update
description: "update below a nested map"
initial: { a: { b: 1 } }
observers: [{name: all}]
steps:
  - {op: set, path: a.b, value: 2}
  - op: turn
expect:
  flushes: 1
  final: { a: { b: 2 } }
`

const failingScenario = `
name: wrong_final
description: "expects a final tree that never happens"
initial: { a: 1 }
steps:
  - {op: set, path: a, value: 2}
  - op: turn
expect:
  final: { a: 3 }
`

// writeFile writes content to dir/name, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunCommand_Text(t *testing.T) {
	file := writeFile(t, t.TempDir(), "nested.yaml", nestedScenario)

	out, err := executeRun(t, "text", file)
	require.NoError(t, err)
	assert.Equal(t, "Scenario: nested_update\n"+
		"[flush 1] all\n"+
		"  #1 update \"a.b\" value=2 old=1\n"+
		"Flushes: 1, observer errors: 0\n"+
		"✓ Expectations met\n", out)
}

func TestRunCommand_JSON(t *testing.T) {
	file := writeFile(t, t.TempDir(), "nested.yaml", nestedScenario)

	out, err := executeRun(t, "json", file)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scenario string `json:"scenario"`
			Result   struct {
				Pass       bool `json:"pass"`
				Flushes    int  `json:"flushes"`
				Deliveries []struct {
					Observer string `json:"observer"`
					Records  []struct {
						Type  string `json:"type"`
						Value any    `json:"value"`
					} `json:"records"`
				} `json:"deliveries"`
				Final map[string]any `json:"final"`
			} `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "nested_update", resp.Data.Scenario)
	assert.True(t, resp.Data.Result.Pass)
	assert.Equal(t, 1, resp.Data.Result.Flushes)
	require.Len(t, resp.Data.Result.Deliveries, 1)
	require.Len(t, resp.Data.Result.Deliveries[0].Records, 1)
	assert.Equal(t, "update", resp.Data.Result.Deliveries[0].Records[0].Type)
	assert.Equal(t, float64(2), resp.Data.Result.Deliveries[0].Records[0].Value)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": float64(2)}}, resp.Data.Result.Final)
}

func TestRunCommand_FailedExpectation(t *testing.T) {
	file := writeFile(t, t.TempDir(), "fail.yaml", failingScenario)

	out, err := executeRun(t, "text", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Expectations failed")
	assert.Contains(t, out, "Assertion failed: final")

	out, err = executeRun(t, "json", file)
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
}

func TestRunCommand_MissingFile(t *testing.T) {
	out, err := executeRun(t, "text", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_NOT_FOUND]")
}

func TestRunCommand_InvalidScenario(t *testing.T) {
	file := writeFile(t, t.TempDir(), "bad.yaml", "name: n\ndescription: d\ninitial: {}\n")

	out, err := executeRun(t, "text", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_INVALID_SCENARIO]")
	assert.Contains(t, out, "steps is required")
}

func TestRunCommand_ExecutionError(t *testing.T) {
	file := writeFile(t, t.TempDir(), "scalar.yaml", `
name: scalar
description: "a scalar cannot be observed"
initial: 42
steps: [{op: turn}]
`)

	out, err := executeRun(t, "text", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_EXECUTION]")
}

func TestRunCommand_Metrics(t *testing.T) {
	file := writeFile(t, t.TempDir(), "nested.yaml", nestedScenario)

	out, err := executeRun(t, "text", file, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "# TYPE shadow_flushes_total counter")
	assert.Contains(t, out, "shadow_flushes_total 1")
	assert.Contains(t, out, `shadow_records_total{type="update"} 1`)
	assert.Contains(t, out, "shadow_roots_live 0", "the harness revokes its root")

	out, err = executeRun(t, "json", file, "--metrics")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Metrics string `json:"metrics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Data.Metrics, "shadow_flushes_total 1")
}

func TestRunCommand_MissingArgs(t *testing.T) {
	_, err := executeRun(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
