package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/payload"
)

func TestSerialize_Canonical(t *testing.T) {
	e := Event{
		ID:        "ev-1",
		Type:      TypeToolStarted,
		StreamID:  "s1",
		Actor:     "agent",
		Timestamp: 1700000000000,
		Seq:       7,
		Payload:   payload.Object{"tool": payload.String("bash"), "args": payload.Array{payload.String("ls")}},
	}

	line, err := Serialize(e)
	require.NoError(t, err)
	assert.Equal(t,
		`{"actor":"agent","id":"ev-1","payload":{"args":["ls"],"tool":"bash"},"seq":7,"stream_id":"s1","timestamp":1700000000000,"type":"execution.tool.started"}`,
		string(line))
}

func TestSerialize_EmptyPayload(t *testing.T) {
	line, err := Serialize(Event{ID: "e", Type: TypeRetry, StreamID: "s", Timestamp: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"e","payload":{},"stream_id":"s","timestamp":1,"type":"execution.retry"}`, string(line))
}

func TestSerialize_NoNewlines(t *testing.T) {
	e := Event{ID: "e", Type: TypeTextDelta, StreamID: "s", Timestamp: 1,
		Payload: payload.Object{"text": payload.String("a\nb\r\n")}}
	line, err := Serialize(e)
	require.NoError(t, err)
	assert.NotContains(t, string(line), "\n")
}

func TestRoundTrip(t *testing.T) {
	e := Event{
		ID:            "ev-1",
		Type:          TypeCheckpointRequested,
		StreamID:      "s1",
		CausationID:   "ev-0",
		CorrelationID: "run-1",
		Actor:         "alice",
		Timestamp:     1700000000123,
		Seq:           3,
		Payload: payload.Object{
			"checkpoint_id": payload.String("cp1"),
			"options":       payload.Array{payload.Object{"id": payload.String("yes")}},
			"big":           payload.Int(9007199254740993),
			"flag":          payload.Bool(true),
			"none":          payload.Null{},
		},
	}

	line, err := Serialize(e)
	require.NoError(t, err)
	got, ok := Deserialize(line)
	require.True(t, ok)
	assert.Equal(t, e, got)

	again, err := Serialize(got)
	require.NoError(t, err)
	assert.Equal(t, line, again, "re-serialization is byte-identical")
}

func TestDeserialize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not json", "hello"},
		{"array", `[1,2]`},
		{"partial write", `{"id":"e1","type":"execution.retry","stream_id":"s1","times`},
		{"missing id", `{"type":"execution.retry","stream_id":"s1","timestamp":1,"payload":{}}`},
		{"empty id", `{"id":"","type":"execution.retry","stream_id":"s1","timestamp":1,"payload":{}}`},
		{"missing type", `{"id":"e1","stream_id":"s1","timestamp":1,"payload":{}}`},
		{"unknown type", `{"id":"e1","type":"bogus.type","stream_id":"s1","timestamp":1,"payload":{}}`},
		{"missing stream", `{"id":"e1","type":"execution.retry","timestamp":1,"payload":{}}`},
		{"missing timestamp", `{"id":"e1","type":"execution.retry","stream_id":"s1","payload":{}}`},
		{"float timestamp", `{"id":"e1","type":"execution.retry","stream_id":"s1","timestamp":1.5,"payload":{}}`},
		{"float payload", `{"id":"e1","type":"execution.retry","stream_id":"s1","timestamp":1,"payload":{"x":0.5}}`},
		{"payload not object", `{"id":"e1","type":"execution.retry","stream_id":"s1","timestamp":1,"payload":[]}`},
		{"two objects", `{"id":"e1","type":"execution.retry","stream_id":"s1","timestamp":1} {}`},
		{"wrong id type", `{"id":5,"type":"execution.retry","stream_id":"s1","timestamp":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Deserialize([]byte(tt.line))
			assert.False(t, ok)
		})
	}
}

func TestDeserialize_MissingPayloadDefaultsEmpty(t *testing.T) {
	e, ok := Deserialize([]byte(`{"id":"e1","type":"execution.retry","stream_id":"s1","timestamp":1}` + "\n"))
	require.True(t, ok)
	assert.Equal(t, payload.Object{}, e.Payload)
	assert.Equal(t, int64(0), e.Seq)
}
