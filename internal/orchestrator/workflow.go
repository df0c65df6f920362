package orchestrator

import (
	"context"
	"fmt"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

// WorkflowSpec describes a workflow to spawn.
type WorkflowSpec struct {
	// ID is generated when empty.
	ID string

	// StreamID is the stream the workflow's events go to. Defaults to
	// ParentStream, then to the workflow id.
	StreamID string

	Description  string
	Executor     string
	Prompt       string
	ParentStream string
	TimeoutMs    int64

	Actor         string
	CausationID   string
	CorrelationID string
}

// CreateWorkflow appends workflow.spawned with status pending and returns
// the workflow id.
func (o *Orchestrator) CreateWorkflow(ctx context.Context, spec WorkflowSpec) (string, error) {
	o.mu.Lock()
	id, err := o.createWorkflowLocked(ctx, spec)
	o.mu.Unlock()
	if err != nil {
		return "", err
	}
	o.drain()
	return id, nil
}

func (o *Orchestrator) createWorkflowLocked(ctx context.Context, spec WorkflowSpec) (string, error) {
	if err := o.initLocked(ctx); err != nil {
		return "", err
	}
	err := validText(spec.ID, spec.StreamID, spec.Description, spec.Executor, spec.Prompt, spec.ParentStream)
	if err != nil {
		return "", fmt.Errorf("create workflow: %w", err)
	}
	id := spec.ID
	if id == "" {
		id = o.ids.Generate()
	}
	id = payload.NFC(id)
	stream := spec.StreamID
	if stream == "" {
		stream = spec.ParentStream
	}
	if stream == "" {
		stream = id
	}
	pl, err := payload.FromStruct(event.WorkflowSpawnedPayload{
		WorkflowID:   id,
		Description:  spec.Description,
		Executor:     spec.Executor,
		Prompt:       spec.Prompt,
		ParentStream: spec.ParentStream,
		TimeoutMs:    spec.TimeoutMs,
		Status:       event.WorkflowPending,
	})
	if err != nil {
		return "", fmt.Errorf("create workflow: %w", err)
	}
	_, err = o.appendLocked(ctx, event.Input{
		Type:          event.TypeWorkflowSpawned,
		StreamID:      stream,
		CausationID:   spec.CausationID,
		CorrelationID: spec.CorrelationID,
		Actor:         spec.Actor,
		Payload:       pl,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CompleteWorkflow appends workflow.completed with result. It returns false
// without appending when id is not an active workflow.
func (o *Orchestrator) CompleteWorkflow(ctx context.Context, id, result string) (bool, error) {
	return o.transitionWorkflow(ctx, event.TypeWorkflowCompleted, event.WorkflowResultPayload{
		WorkflowID: id,
		Result:     result,
	})
}

// FailWorkflow appends workflow.failed with the error text.
func (o *Orchestrator) FailWorkflow(ctx context.Context, id, errText string) (bool, error) {
	return o.transitionWorkflow(ctx, event.TypeWorkflowFailed, event.WorkflowResultPayload{
		WorkflowID: id,
		Error:      errText,
	})
}

// AbortWorkflow appends workflow.aborted with an optional reason.
func (o *Orchestrator) AbortWorkflow(ctx context.Context, id, reason string) (bool, error) {
	return o.transitionWorkflow(ctx, event.TypeWorkflowAborted, event.WorkflowResultPayload{
		WorkflowID: id,
		Error:      reason,
	})
}

// ResumeWorkflow appends workflow.resumed, marking the workflow running.
func (o *Orchestrator) ResumeWorkflow(ctx context.Context, id string) (bool, error) {
	return o.transitionWorkflow(ctx, event.TypeWorkflowResumed, event.WorkflowResultPayload{
		WorkflowID: id,
	})
}

// transitionWorkflow appends a workflow transition for an active workflow.
func (o *Orchestrator) transitionWorkflow(ctx context.Context, typ event.Type, pl event.WorkflowResultPayload) (bool, error) {
	o.mu.Lock()
	ok, err := o.transitionLocked(ctx, typ, pl)
	o.mu.Unlock()
	if err != nil || !ok {
		return false, err
	}
	o.drain()
	return true, nil
}

func (o *Orchestrator) transitionLocked(ctx context.Context, typ event.Type, pl event.WorkflowResultPayload) (bool, error) {
	if err := o.initLocked(ctx); err != nil {
		return false, err
	}
	if err := validText(pl.WorkflowID, pl.Result, pl.Error); err != nil {
		return false, fmt.Errorf("%s: %w", typ, err)
	}
	pl.WorkflowID = payload.NFC(pl.WorkflowID)
	wf, ok := o.proj.Workflow(pl.WorkflowID)
	if !ok {
		o.logger.Debug("workflow transition for unknown id", "type", typ, "workflow_id", pl.WorkflowID)
		return false, nil
	}
	obj, err := payload.FromStruct(pl)
	if err != nil {
		return false, fmt.Errorf("%s: %w", typ, err)
	}
	if _, err := o.appendLocked(ctx, event.Input{
		Type:     typ,
		StreamID: wf.StreamID,
		Payload:  obj,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// ActiveWorkflows returns the pending and running workflows in spawn order.
func (o *Orchestrator) ActiveWorkflows() []event.Workflow {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proj.ActiveWorkflows()
}

// Workflow returns the active workflow with id.
func (o *Orchestrator) Workflow(id string) (event.Workflow, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proj.Workflow(payload.NFC(id))
}
