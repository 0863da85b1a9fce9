package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enrichcall/internal/host"
)

func TestMarshalSnapshot_Stable(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{
			{Seq: 1, Flow: "f", Kind: "content", Number: "1", State: "OFFERED", Outcome: "queued", Matched: 1},
		},
		Final: host.Snapshot{Calls: []host.CallView{}, Pending: []host.ContentView{}},
	}

	a, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	b, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	want := `{
  "scenario_name": "s",
  "trace": [
    {
      "seq": 1,
      "flow": "f",
      "kind": "content",
      "number": "1",
      "state": "OFFERED",
      "outcome": "queued",
      "matched": 1
    }
  ],
  "final": {
    "calls": [],
    "pending": []
  }
}
`
	assert.Equal(t, want, string(a))
}

func TestMarshalSnapshot_OmitsEmptyFields(t *testing.T) {
	data, err := MarshalSnapshot(TraceSnapshot{
		ScenarioName: "s",
		Trace:        []TraceEvent{{Seq: 3, Kind: "connected", Outcome: "connected"}},
	})
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "flow_token")
	assert.NotContains(t, out, `"number"`)
	assert.NotContains(t, out, `"matched"`)
	assert.Contains(t, out, `"calls": null`)
}

func TestRunWithGolden_ContentBeforeCall(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/content_before_call.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
