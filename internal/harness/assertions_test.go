package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
)

func sampleResult() *Result {
	r := NewResult()
	r.Events = []event.Event{
		{ID: "e1", Seq: 1, Type: event.TypeWorkflowSpawned, StreamID: "root"},
		{ID: "e2", Seq: 2, Type: event.TypeCheckpointRequested, StreamID: "root"},
		{ID: "e3", Seq: 3, Type: event.TypeTextDelta, StreamID: "child"},
		{ID: "e4", Seq: 4, Type: event.TypeCheckpointApproved, StreamID: "root"},
	}
	r.PendingCheckpoints = []event.Checkpoint{{ID: "cp1"}, {ID: "cp2"}}
	r.ActiveWorkflows = []event.Workflow{{ID: "wf1"}}
	r.Replayed = 4
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertEventCount, Count: intPtr(4)},
		{Type: AssertEventCount, Count: intPtr(3), Stream: "root"},
		{Type: AssertEventCount, Count: intPtr(1), EventType: "checkpoint.approved"},
		{Type: AssertEventCount, Count: intPtr(0), EventType: "workflow.failed"},
		{Type: AssertEventOrder, Types: []string{"workflow.spawned", "execution.text.delta", "checkpoint.approved"}},
		{Type: AssertPendingCheckpoints, IDs: []string{"cp1", "cp2"}},
		{Type: AssertActiveWorkflows, IDs: []string{"wf1"}},
		{Type: AssertEventsReplayed, Count: intPtr(4)},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_EventCountFailure(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertEventCount, Count: intPtr(2), EventType: "execution.text.delta", Stream: "child"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: event_count")
	assert.Contains(t, errs[0], "Expected: 2 execution.text.delta events in stream child")
	assert.Contains(t, errs[0], "Actual: 1 execution.text.delta events in stream child")
	assert.Contains(t, errs[0], "[3] execution.text.delta child e3")
}

func TestEvaluateAssertions_EventOrderFailures(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertEventOrder, Types: []string{"checkpoint.approved", "checkpoint.requested"}},
		{Type: AssertEventOrder, Types: []string{"workflow.spawned", "workflow.completed"}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "checkpoint.approved (pos 4) should be before checkpoint.requested (pos 2)")
	assert.Contains(t, errs[1], "missing type: workflow.completed")
}

func TestEvaluateAssertions_IDListsAreExactAndOrdered(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertPendingCheckpoints, IDs: []string{"cp2", "cp1"}},
		{Type: AssertPendingCheckpoints, IDs: []string{"cp1"}},
		{Type: AssertActiveWorkflows, IDs: []string{}},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Expected: [cp2 cp1]")
	assert.Contains(t, errs[0], "Actual: [cp1 cp2]")
	assert.Contains(t, errs[2], "Assertion failed: active_workflows")
}

func TestEvaluateAssertions_EventsReplayedFailure(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertEventsReplayed, Count: intPtr(5)},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: 5 events replayed")
	assert.Contains(t, errs[0], "Actual: 4 events replayed")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
