package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"checkpoint_round_trip", "crash_recovery"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_MarshalIsCanonical(t *testing.T) {
	r := NewResult()
	r.Events = []event.Event{{
		ID:        "e1",
		Type:      event.TypeRetry,
		StreamID:  "s",
		Timestamp: 5,
		Seq:       1,
		Payload:   payload.Object{"b": payload.Int(2), "a": payload.String("x")},
	}}

	data, err := NewSnapshot("snap", r).Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"active_workflows":[],"events":[{"id":"e1","payload":{"a":"x","b":2},"seq":1,"stream_id":"s","timestamp":5,"type":"execution.retry"}],"pending_checkpoints":[],"scenario_name":"snap"}`+"\n",
		string(data))
}

func TestSnapshot_NilSlicesBecomeEmpty(t *testing.T) {
	data, err := NewSnapshot("empty", &Result{}).Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"active_workflows":[],"events":[],"pending_checkpoints":[],"scenario_name":"empty"}`+"\n",
		string(data))
}
