package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Content then call"
flow_token: fixed
connected: true
accounts:
  - { id: sim1, component: telephony, sub_id: 1, schemes: [tel], rcs: true }
steps:
  - content: { number: "4155550100", subject: "hi", priority: urgent }
  - call: { id: c1, handle: "tel:4155550100" }
assertions:
  - type: attached
    call: c1
    subject: hi
  - type: pending_count
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "fixed", scenario.FlowToken)
	assert.True(t, scenario.Connected)
	assert.False(t, scenario.FeatureDisabled)
	require.Len(t, scenario.Accounts, 1)
	assert.True(t, scenario.Accounts[0].RCS)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "content", scenario.Steps[0].Name())
	assert.Equal(t, "hi", scenario.Steps[0].Content.Subject)
	assert.Equal(t, "call", scenario.Steps[1].Name())
	require.Len(t, scenario.Assertions, 2)
	require.NotNil(t, scenario.Assertions[1].Count)
	assert.Equal(t, 0, *scenario.Assertions[1].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "typo"
stepz: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := map[string]struct {
		yaml string
		want string
	}{
		"missing name": {
			yaml: `
description: d
steps: [{ service: connect }]
assertions: [{ type: pending_count, count: 0 }]
`,
			want: "name is required",
		},
		"missing description": {
			yaml: `
name: n
steps: [{ service: connect }]
assertions: [{ type: pending_count, count: 0 }]
`,
			want: "description is required",
		},
		"no steps": {
			yaml: `
name: n
description: d
assertions: [{ type: pending_count, count: 0 }]
`,
			want: "steps list is required",
		},
		"no assertions": {
			yaml: `
name: n
description: d
steps: [{ service: connect }]
`,
			want: "assertions list is required",
		},
		"two fields in one step": {
			yaml: `
name: n
description: d
steps:
  - service: connect
    end_call: c1
assertions: [{ type: pending_count, count: 0 }]
`,
			want: "steps[0]",
		},
		"bad service value": {
			yaml: `
name: n
description: d
steps: [{ service: reboot }]
assertions: [{ type: pending_count, count: 0 }]
`,
			want: "service: want",
		},
		"bad state": {
			yaml: `
name: n
description: d
steps: [{ state: { number: "1", state: LOST } }]
assertions: [{ type: pending_count, count: 0 }]
`,
			want: "steps[0]: state",
		},
		"count missing": {
			yaml: `
name: n
description: d
steps: [{ service: connect }]
assertions: [{ type: journal_count }]
`,
			want: "count is required for journal_count",
		},
		"negative count": {
			yaml: `
name: n
description: d
steps: [{ service: connect }]
assertions: [{ type: pending_count, count: -1 }]
`,
			want: "count must be non-negative",
		},
		"attached without call": {
			yaml: `
name: n
description: d
steps: [{ service: connect }]
assertions: [{ type: attached }]
`,
			want: "call is required for attached",
		},
		"unknown assertion": {
			yaml: `
name: n
description: d
steps: [{ service: connect }]
assertions: [{ type: eventually }]
`,
			want: `unknown assertion type "eventually"`,
		},
		"empty trace_contains": {
			yaml: `
name: n
description: d
steps: [{ service: connect }]
assertions: [{ type: trace_contains }]
`,
			want: "trace_contains needs at least one of",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	names := make(map[string]string)
	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)

		base := filepath.Base(path)
		assert.Equal(t, base[:len(base)-len(".yaml")], s.Name, "scenario name should match file name")
		if prev, dup := names[s.Name]; dup {
			t.Errorf("scenario %q defined in %s and %s", s.Name, prev, path)
		}
		names[s.Name] = path
	}
}
