package event

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/payload"
	"github.com/roach88/hivelog/internal/testutil"
)

func TestCreate_AssignsIDAndTimestamp(t *testing.T) {
	clock := testutil.NewDeterministicClock(time.UnixMilli(1000))
	ids := testutil.NewSequenceIDs("ev")

	e := Create(Input{Type: TypeSessionCreated, StreamID: "s1"}, ids, clock.Now)

	assert.Equal(t, "ev-0001", e.ID)
	assert.Equal(t, int64(1000), e.Timestamp)
	assert.Equal(t, TypeSessionCreated, e.Type)
	assert.Equal(t, "s1", e.StreamID)
	assert.NotNil(t, e.Payload, "payload is never nil")
}

func TestCreate_KeepsExplicitValues(t *testing.T) {
	in := Input{
		ID:        "fixed",
		Type:      TypeRetry,
		StreamID:  "s1",
		Timestamp: 42,
		Payload:   payload.Object{"n": payload.Int(1)},
	}
	e := Create(in, testutil.NewSequenceIDs("ev"), time.Now)

	assert.Equal(t, "fixed", e.ID)
	assert.Equal(t, int64(42), e.Timestamp)

	// The payload is copied, not shared.
	e.Payload["n"] = payload.Int(2)
	assert.Equal(t, payload.Int(1), in.Payload["n"])
}

func TestCreate_NilGeneratorsUseDefaults(t *testing.T) {
	e := Create(Input{Type: TypeRetry, StreamID: "s1"}, nil, nil)
	assert.Len(t, e.ID, 36)
	assert.NotZero(t, e.Timestamp)
}

func TestUUIDv7Generator_LexicalOrder(t *testing.T) {
	var gen UUIDv7Generator
	ids := make([]string, 200)
	for i := range ids {
		ids[i] = gen.Generate()
	}
	assert.True(t, sort.StringsAreSorted(ids), "UUIDv7 ids sort in creation order")

	seen := make(map[string]bool)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTypeCategory(t *testing.T) {
	tests := []struct {
		typ  Type
		want Category
	}{
		{TypeSessionCreated, CategoryLifecycle},
		{TypeToolFinished, CategoryExecution},
		{TypeWorkflowResumed, CategoryWorkflow},
		{TypeCheckpointApproved, CategoryCheckpoint},
		{TypeFilesPatched, CategoryFiles},
		{TypeLearningExtracted, CategoryLearning},
		{TypeLedgerGovernanceDecided, CategoryLedger},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Category())
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range AllTypes() {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, Type("workflow.exploded").Valid())
	assert.False(t, Wildcard.Valid())

	typ, ok := ParseType(" checkpoint.requested ")
	assert.True(t, ok)
	assert.Equal(t, TypeCheckpointRequested, typ)
}
