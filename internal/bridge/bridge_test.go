package bridge

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

type recorder struct {
	inputs []event.Input
	err    error
}

func (r *recorder) Append(_ context.Context, in event.Input) (event.Event, error) {
	if r.err != nil {
		return event.Event{}, r.err
	}
	r.inputs = append(r.inputs, in)
	return event.Create(in, nil, nil), nil
}

func validData(k Kind) map[string]any {
	data := map[string]any{}
	for _, key := range mappings[k].required {
		data[key] = "x"
	}
	return data
}

func TestKinds_SortedAndStable(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, len(mappings))
	assert.True(t, slices.IsSorted(kinds), "kinds: %v", kinds)
	for i := 0; i < 5; i++ {
		assert.Equal(t, kinds, Kinds())
	}
}

func TestTranslate_EveryKindYieldsOneKnownType(t *testing.T) {
	seen := map[event.Type]Kind{}
	for _, k := range Kinds() {
		in, err := Translate(HostEvent{Kind: k, SessionID: "sess", Data: validData(k)})
		require.NoError(t, err, k)
		assert.True(t, in.Type.Valid(), k)
		assert.Equal(t, "sess", in.StreamID)
		assert.Equal(t, "sess", in.Payload.Str("session_id"))

		prev, dup := seen[in.Type]
		assert.False(t, dup, "%s and %s map to %s", prev, k, in.Type)
		seen[in.Type] = k
	}
	assert.Len(t, seen, 15)
}

func TestTranslate_Mapping(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	in, err := Translate(HostEvent{
		Kind:      KindToolFinish,
		SessionID: "child",
		ParentID:  "root",
		Actor:     "agent",
		At:        at,
		Data:      map[string]any{"tool": "grep", "exit_code": 0},
	})
	require.NoError(t, err)

	assert.Equal(t, event.TypeToolFinished, in.Type)
	assert.Equal(t, "root", in.StreamID)
	assert.Equal(t, "agent", in.Actor)
	assert.Equal(t, at.UnixMilli(), in.Timestamp)
	assert.Equal(t, payload.Object{
		"tool":       payload.String("grep"),
		"exit_code":  payload.Int(0),
		"session_id": payload.String("child"),
		"parent_id":  payload.String("root"),
	}, in.Payload)
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name string
		h    HostEvent
	}{
		{"unknown kind", HostEvent{Kind: "window.resized", SessionID: "s"}},
		{"missing session", HostEvent{Kind: KindSessionIdle}},
		{"missing required field", HostEvent{Kind: KindFileEdited, SessionID: "s"}},
		{"float data", HostEvent{Kind: KindRetry, SessionID: "s", Data: map[string]any{"delay": 1.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.h)
			require.Error(t, err)
		})
	}
	_, err := Translate(HostEvent{Kind: "nope", SessionID: "s"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestHandle_SwallowsFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	b := New(rec, nil)

	b.Handle(ctx, HostEvent{Kind: "bogus", SessionID: "s"})
	b.Handle(ctx, HostEvent{Kind: KindSessionCreated, SessionID: "s"})
	assert.Equal(t, int64(1), b.Failures())
	require.Len(t, rec.inputs, 1)
	assert.Equal(t, event.TypeSessionCreated, rec.inputs[0].Type)

	rec.err = errors.New("disk full")
	b.Handle(ctx, HostEvent{Kind: KindSessionIdle, SessionID: "s"})
	assert.Equal(t, int64(2), b.Failures())

	rec.err = nil
	b.Handle(ctx, HostEvent{Kind: KindSessionIdle, SessionID: "s"})
	assert.Len(t, rec.inputs, 2)
}
