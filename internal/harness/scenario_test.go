package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
initial: { a: { b: 1 }, items: [1, 2] }
observers:
  - name: all
  - name: a_only
    path_prefix: a
    types: [update]
steps:
  - op: set
    path: a.b
    value: 2
  - op: splice
    path: items
    start: 0
    count: 1
    items: [x]
  - op: turn
expect:
  flushes: 1
  deliveries:
    - observer: a_only
      flush: 1
      records:
        - { type: update, path: a.b, value: 2, old_value: 1 }
  final: { a: { b: 2 }, items: [x, 2] }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Observers, 2)
	require.NotNil(t, scenario.Observers[1].PathPrefix)
	assert.Equal(t, "a", *scenario.Observers[1].PathPrefix)
	assert.Equal(t, []string{"update"}, scenario.Observers[1].Types)

	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, OpSet, scenario.Steps[0].Op)
	assert.Equal(t, 2, scenario.Steps[0].Value)
	require.NotNil(t, scenario.Steps[1].Count)
	assert.Equal(t, 1, *scenario.Steps[1].Count)
	assert.Equal(t, []any{"x"}, scenario.Steps[1].Items)

	require.NotNil(t, scenario.Expect)
	require.NotNil(t, scenario.Expect.Flushes)
	assert.Equal(t, 1, *scenario.Expect.Flushes)
	require.Len(t, scenario.Expect.Deliveries, 1)
	rec := scenario.Expect.Deliveries[0].Records[0]
	assert.Equal(t, "update", rec.Type)
	assert.Equal(t, "2", rec.Value.Value)
	assert.Equal(t, "1", rec.OldValue.Value)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "bad.yaml", "name: [unclosed\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "misspelled field"
initial: {}
step:
  - op: turn
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "step")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: d
initial: {}
steps: [{op: turn}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
initial: {}
steps: [{op: turn}]
`,
			wantErr: "description is required",
		},
		{
			name: "name with path separator",
			yaml: `
name: a/b
description: d
initial: {}
steps: [{op: turn}]
`,
			wantErr: "name must not contain path separators",
		},
		{
			name: "missing steps",
			yaml: `
name: n
description: d
initial: {}
`,
			wantErr: "steps is required",
		},
		{
			name: "unknown op",
			yaml: `
name: n
description: d
initial: {}
steps: [{op: explode}]
`,
			wantErr: "steps[0].op: explode is not one of",
		},
		{
			name: "unknown expected error kind",
			yaml: `
name: n
description: d
initial: {}
steps: [{op: turn, error: oops}]
`,
			wantErr: "steps[0].error",
		},
		{
			name: "negative splice count",
			yaml: `
name: n
description: d
initial: {l: []}
steps: [{op: splice, path: l, count: -1}]
`,
			wantErr: "steps[0].count must be >= 0",
		},
		{
			name: "unknown observer type filter",
			yaml: `
name: n
description: d
initial: {}
observers: [{name: o, types: [move]}]
steps: [{op: turn}]
`,
			wantErr: "observers[0].types[0]",
		},
		{
			name: "unknown record type",
			yaml: `
name: n
description: d
initial: {}
observers: [{name: o}]
steps: [{op: turn}]
expect:
  deliveries:
    - observer: o
      flush: 1
      records: [{type: move}]
`,
			wantErr: "expect.deliveries[0].records[0].type",
		},
		{
			name: "flush numbers start at one",
			yaml: `
name: n
description: d
initial: {}
observers: [{name: o}]
steps: [{op: turn}]
expect:
  deliveries: [{observer: o, flush: 0, records: []}]
`,
			wantErr: "expect.deliveries[0].flush is required",
		},
		{
			name: "no initial tree",
			yaml: `
name: n
description: d
steps: [{op: turn}]
`,
			wantErr: "one of initial or initial_file is required",
		},
		{
			name: "both initial forms",
			yaml: `
name: n
description: d
initial: {}
initial_file: data.json
steps: [{op: turn}]
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "duplicate observer",
			yaml: `
name: n
description: d
initial: {}
observers: [{name: o}, {name: o}]
steps: [{op: turn}]
`,
			wantErr: `observers[1]: duplicate name "o"`,
		},
		{
			name: "two path filters",
			yaml: `
name: n
description: d
initial: {}
observers: [{name: o, path: a, path_prefix: b}]
steps: [{op: turn}]
`,
			wantErr: "observers[0]: path, path_prefix and paths_of are mutually exclusive",
		},
		{
			name: "set without path",
			yaml: `
name: n
description: d
initial: {}
steps: [{op: set, value: 1}]
`,
			wantErr: "steps[0]: set: path is required",
		},
		{
			name: "push without items",
			yaml: `
name: n
description: d
initial: {l: []}
steps: [{op: push, path: l}]
`,
			wantErr: "steps[0]: push: items is required",
		},
		{
			name: "unobserve unknown observer",
			yaml: `
name: n
description: d
initial: {}
steps: [{op: unobserve, observer: ghost}]
`,
			wantErr: `unobserve: unknown observer "ghost"`,
		},
		{
			name: "delivery to unknown observer",
			yaml: `
name: n
description: d
initial: {}
steps: [{op: turn}]
expect:
  deliveries: [{observer: ghost, flush: 1, records: []}]
`,
			wantErr: `expect.deliveries[0]: unknown observer "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_InitialFileResolvesAgainstScenarioDir(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "data/tree.json", `{"a": [1, 2]}`)
	path := writeScenario(t, dir, "scenarios/s.yaml", `
name: from_file
description: "initial tree loaded from JSON"
initial_file: ../data/tree.json
steps: [{op: turn}]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scenarios", "../data/tree.json"), scenario.InitialPath())

	raw, err := scenario.initialTree()
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, render(raw))
}

func TestLoadScenario_InitialFileMissing(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: missing_file
description: d
initial_file: nope.json
steps: [{op: turn}]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial_file not found")
}

func TestScenario_InitialTreeMustBeContainer(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: scalar
description: d
initial: 42
steps: [{op: turn}]
`))
	require.NoError(t, err)

	_, err = scenario.initialTree()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a map or a list")
}

func TestScenario_InitialTreeIsFreshEachTime(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: fresh
description: d
initial: {a: 1}
steps: [{op: turn}]
`))
	require.NoError(t, err)

	first, err := scenario.initialTree()
	require.NoError(t, err)
	second, err := scenario.initialTree()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestScenario_ValidateGoLiteral(t *testing.T) {
	s := &Scenario{
		Name:        "literal",
		Description: "built in Go",
		Initial:     map[string]any{"a": 1},
		Steps:       []Step{{Op: OpTurn}},
	}
	require.NoError(t, s.Validate())

	s.Steps = nil
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps is required")
}
