package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/orchestrator"
	"github.com/roach88/hivelog/internal/payload"
	"github.com/roach88/hivelog/internal/store"
	"github.com/roach88/hivelog/internal/testutil"
)

// Harness executes one scenario against a FileStore in a scratch directory.
type Harness struct {
	path string

	// clock drives event timestamps and checkpoint expiry. The store gets
	// its own frozen clock so archive names do not consume ticks.
	clock      *testutil.DeterministicClock
	storeClock *testutil.DeterministicClock

	ids     *testutil.ScriptedIDs
	timeout time.Duration
	logger  *slog.Logger

	store *store.FileStore
	orch  *orchestrator.Orchestrator
}

// outcome is what a step returned.
type outcome struct {
	id       string
	ok       bool
	replayed int
	err      error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh log in a temporary directory that is removed
// afterwards. An error is returned only when the harness itself cannot run;
// failed expectations and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "hivelog-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	storeClock := testutil.NewDeterministicClock(time.Time{})
	storeClock.SetStep(0)

	h := &Harness{
		path:       filepath.Join(dir, "events.jsonl"),
		clock:      testutil.NewDeterministicClock(time.Time{}),
		storeClock: storeClock,
		ids:        testutil.NewScriptedIDs(scenario.IDs...),
		timeout:    time.Duration(scenario.CheckpointTimeoutMs) * time.Millisecond,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx := context.Background()
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	defer func() { h.orch.Close() }()

	result := NewResult()
	for i, step := range scenario.Steps {
		out, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		if step.Op == OpRestart && out.err == nil {
			result.Replayed = out.replayed
		}
		checkStep(i, step, out, result)
	}

	events, err := h.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final log: %w", err)
	}
	result.Events = events
	if pending := h.orch.PendingCheckpoints(); pending != nil {
		result.PendingCheckpoints = pending
	}
	if active := h.orch.ActiveWorkflows(); active != nil {
		result.ActiveWorkflows = active
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// open opens the log at h.path and wraps it in a new orchestrator.
func (h *Harness) open(ctx context.Context) error {
	st, err := store.OpenFile(ctx, store.Options{
		Path:         h.path,
		RotationSize: -1,
		Clock:        h.storeClock.Now,
		Logger:       h.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithClock(h.clock.Now),
		orchestrator.WithIDGenerator(h.ids),
		orchestrator.WithLogger(h.logger),
	}
	if h.timeout > 0 {
		opts = append(opts, orchestrator.WithCheckpointTimeout(h.timeout))
	}
	h.store = st
	h.orch = orchestrator.New(st, opts...)
	return nil
}

// restart discards all in-memory state and recovers from disk.
func (h *Harness) restart(ctx context.Context) (int, error) {
	if err := h.orch.Close(); err != nil {
		return 0, err
	}
	if err := h.open(ctx); err != nil {
		return 0, err
	}
	res, err := h.orch.Resume(ctx)
	if err != nil {
		return 0, err
	}
	return res.EventsReplayed, nil
}

// execute runs one step. Errors from the orchestrator are part of the
// outcome; the returned error means the step could not be attempted.
func (h *Harness) execute(ctx context.Context, step Step) (outcome, error) {
	var out outcome
	switch step.Op {
	case OpAppend:
		obj, err := stepPayload(step.Payload)
		if err != nil {
			return out, err
		}
		e, err := h.orch.Append(ctx, event.Input{
			Type:     event.Type(step.Type),
			StreamID: step.Stream,
			Actor:    step.Actor,
			Payload:  obj,
		})
		out.id, out.err = e.ID, err
	case OpRequestCheckpoint:
		out.id, out.err = h.orch.RequestCheckpoint(ctx, orchestrator.CheckpointRequest{
			StreamID:  step.Stream,
			Decision:  step.Decision,
			Options:   stepOptions(step.Options),
			Requester: step.Actor,
		})
	case OpApproveCheckpoint:
		out.ok, out.err = h.orch.ApproveCheckpoint(ctx, step.ID, step.Actor, step.Option)
	case OpRejectCheckpoint:
		out.ok, out.err = h.orch.RejectCheckpoint(ctx, step.ID, step.Actor, step.Reason)
	case OpSpawnWorkflow:
		out.id, out.err = h.orch.CreateWorkflow(ctx, orchestrator.WorkflowSpec{
			ID:           step.ID,
			StreamID:     step.Stream,
			Description:  step.Description,
			ParentStream: step.Parent,
			Actor:        step.Actor,
		})
	case OpCompleteWorkflow:
		out.ok, out.err = h.orch.CompleteWorkflow(ctx, step.ID, step.Result)
	case OpFailWorkflow:
		out.ok, out.err = h.orch.FailWorkflow(ctx, step.ID, step.Error)
	case OpAbortWorkflow:
		out.ok, out.err = h.orch.AbortWorkflow(ctx, step.ID, step.Reason)
	case OpResumeWorkflow:
		out.ok, out.err = h.orch.ResumeWorkflow(ctx, step.ID)
	case OpRotate:
		_, out.err = h.store.Rotate(ctx)
	case OpRestart:
		out.replayed, out.err = h.restart(ctx)
	default:
		return out, fmt.Errorf("unknown op %q", step.Op)
	}
	return out, nil
}

// checkStep compares a step's outcome with its expect clause.
func checkStep(index int, step Step, out outcome, result *Result) {
	prefix := fmt.Sprintf("steps[%d] %s", index, step.Op)
	exp := step.Expect

	if out.err != nil {
		switch {
		case exp == nil || exp.Error == "":
			result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, out.err))
		case !strings.Contains(out.err.Error(), exp.Error):
			result.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", prefix, exp.Error, out.err))
		}
		return
	}
	if exp == nil {
		return
	}
	if exp.Error != "" {
		result.AddError(fmt.Sprintf("%s: expected error containing %q, got success", prefix, exp.Error))
		return
	}
	if exp.ID != "" && out.id != exp.ID {
		result.AddError(fmt.Sprintf("%s: expected id %q, got %q", prefix, exp.ID, out.id))
	}
	if exp.OK != nil && out.ok != *exp.OK {
		result.AddError(fmt.Sprintf("%s: expected ok=%t, got %t", prefix, *exp.OK, out.ok))
	}
	if exp.EventsReplayed != nil && out.replayed != *exp.EventsReplayed {
		result.AddError(fmt.Sprintf("%s: expected %d events replayed, got %d", prefix, *exp.EventsReplayed, out.replayed))
	}
}

func stepPayload(m map[string]any) (payload.Object, error) {
	if m == nil {
		return payload.Object{}, nil
	}
	v, err := payload.FromAny(m)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return v.(payload.Object), nil
}

func stepOptions(ids []string) []event.Option {
	out := make([]event.Option, len(ids))
	for i, id := range ids {
		out[i] = event.Option{ID: id}
	}
	return out
}
