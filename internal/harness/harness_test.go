package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestRun_TestdataScenariosPass(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/crash_recovery.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Events, second.Events)
	assert.Equal(t, first.PendingCheckpoints, second.PendingCheckpoints)
}

func TestRun_CrashRecovery(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/crash_recovery.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, 5, result.Replayed)
	require.Len(t, result.PendingCheckpoints, 1)
	cp := result.PendingCheckpoints[0]
	assert.Equal(t, "Merge", cp.Decision)
	assert.Equal(t, "agent", cp.Requester)
	assert.Equal(t, cp.RequestedAt+60_000, cp.ExpiresAt)
	assert.Empty(t, result.ActiveWorkflows)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_expectations",
		Description: "every expectation is wrong",
		IDs:         []string{"cp1"},
		Steps: []Step{
			{Op: OpRequestCheckpoint, Stream: "s", Decision: "d", Expect: &StepExpect{ID: "cp9"}},
			{Op: OpApproveCheckpoint, ID: "missing", Expect: &StepExpect{OK: boolPtr(true)}},
			{Op: OpRestart, Expect: &StepExpect{EventsReplayed: intPtr(3)}},
		},
		Assertions: []Assertion{
			{Type: AssertPendingCheckpoints, IDs: []string{}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], `steps[0] request_checkpoint: expected id "cp9", got "cp1"`)
	assert.Contains(t, result.Errors[1], "steps[1] approve_checkpoint: expected ok=true, got false")
	assert.Contains(t, result.Errors[2], "steps[2] restart: expected 3 events replayed, got 1")
	assert.Contains(t, result.Errors[3], "Assertion failed: pending_checkpoints")
}

func TestRun_ExpectedErrors(t *testing.T) {
	s := &Scenario{
		Name:        "errors",
		Description: "error expectations",
		Steps: []Step{
			{Op: OpRequestCheckpoint, Stream: "s", Decision: "d", Options: []string{"yes", "no"}},
			{Op: OpApproveCheckpoint, ID: "id-0001", Option: "maybe", Expect: &StepExpect{Error: "option not offered"}},
			{Op: OpAppend, Stream: "s", Type: "bogus.type"},
			{Op: OpAppend, Stream: "s", Type: string(event.TypeRetry), Expect: &StepExpect{Error: "boom"}},
		},
		Assertions: []Assertion{
			{Type: AssertPendingCheckpoints, IDs: []string{"id-0001"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "steps[2] append: unexpected error")
	assert.Contains(t, result.Errors[1], `steps[3] append: expected error containing "boom", got success`)
}

func TestRun_RejectsFloatPayload(t *testing.T) {
	s := &Scenario{
		Name:        "float",
		Description: "floats are not allowed",
		Steps: []Step{
			{Op: OpAppend, Stream: "s", Type: string(event.TypeRetry), Payload: map[string]any{"ratio": 0.5}},
		},
		Assertions: []Assertion{{Type: AssertEventCount, Count: intPtr(0)}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payload")
}

func TestRun_RotateThenRestartReplaysArchives(t *testing.T) {
	s := &Scenario{
		Name:        "rotation",
		Description: "resume reads archived events",
		Steps: []Step{
			{Op: OpAppend, Stream: "s", Type: string(event.TypeRetry)},
			{Op: OpAppend, Stream: "s", Type: string(event.TypeRetry)},
			{Op: OpRotate},
			{Op: OpAppend, Stream: "s", Type: string(event.TypeRetry)},
			{Op: OpRestart, Expect: &StepExpect{EventsReplayed: intPtr(3)}},
			{Op: OpAppend, Stream: "s", Type: string(event.TypeRetry)},
		},
		Assertions: []Assertion{{Type: AssertEventCount, Count: intPtr(4)}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var seqs []int64
	for _, e := range result.Events {
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs)
}
