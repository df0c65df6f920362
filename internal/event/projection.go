package event

import (
	"slices"
)

// Projection is the live state derived from the log: pending checkpoints
// and active workflows.
//
// Apply is the single transition function. The extractors fold it over a
// whole log and the orchestrator calls it once per append, so incremental
// and replayed state cannot diverge.
//
// Thread-safety: NOT safe for concurrent use. The orchestrator guards it
// with its own mutex.
type Projection struct {
	checkpoints map[string]entry[Checkpoint]
	workflows   map[string]entry[Workflow]

	// applied orders entries by first insertion.
	applied int64
}

type entry[T any] struct {
	order int64
	value T
}

// NewProjection returns an empty projection.
func NewProjection() *Projection {
	return &Projection{
		checkpoints: make(map[string]entry[Checkpoint]),
		workflows:   make(map[string]entry[Workflow]),
	}
}

// Apply folds one event into the projection and reports whether state
// changed. Events outside the checkpoint and workflow namespaces, resolutions
// of unknown ids, and payloads that do not decode are ignored.
func (p *Projection) Apply(e Event) bool {
	switch e.Type {
	case TypeCheckpointRequested:
		return p.requestCheckpoint(e)
	case TypeCheckpointApproved, TypeCheckpointRejected:
		return p.resolveCheckpoint(e)
	case TypeWorkflowSpawned:
		return p.spawnWorkflow(e)
	case TypeWorkflowCompleted, TypeWorkflowFailed, TypeWorkflowAborted:
		return p.finishWorkflow(e)
	case TypeWorkflowResumed:
		return p.resumeWorkflow(e)
	}
	return false
}

func (p *Projection) requestCheckpoint(e Event) bool {
	var pl CheckpointRequestedPayload
	if err := e.Payload.Decode(&pl); err != nil {
		return false
	}
	id := pl.CheckpointID
	if id == "" {
		id = e.ID
	}
	if _, exists := p.checkpoints[id]; exists {
		return false
	}
	p.applied++
	p.checkpoints[id] = entry[Checkpoint]{
		order: p.applied,
		value: Checkpoint{
			ID:          id,
			StreamID:    e.StreamID,
			Decision:    pl.Decision,
			Options:     pl.Options,
			Requester:   e.Actor,
			RequestedAt: e.Timestamp,
			ExpiresAt:   pl.ExpiresAt,
			Status:      CheckpointRequested,
		},
	}
	return true
}

func (p *Projection) resolveCheckpoint(e Event) bool {
	id := e.Payload.Str("checkpoint_id")
	if _, ok := p.checkpoints[id]; !ok {
		return false
	}
	delete(p.checkpoints, id)
	return true
}

func (p *Projection) spawnWorkflow(e Event) bool {
	var pl WorkflowSpawnedPayload
	if err := e.Payload.Decode(&pl); err != nil {
		return false
	}
	id := pl.WorkflowID
	if id == "" {
		id = e.ID
	}
	if _, exists := p.workflows[id]; exists {
		return false
	}
	status := pl.Status
	if status == "" {
		status = WorkflowPending
	}
	// A spawn that is already terminal never enters the live set.
	if !status.Active() {
		return false
	}
	p.applied++
	p.workflows[id] = entry[Workflow]{
		order: p.applied,
		value: Workflow{
			ID:           id,
			StreamID:     e.StreamID,
			Description:  pl.Description,
			Executor:     pl.Executor,
			Prompt:       pl.Prompt,
			ParentStream: pl.ParentStream,
			TimeoutMs:    pl.TimeoutMs,
			Status:       status,
			CreatedAt:    e.Timestamp,
			UpdatedAt:    e.Timestamp,
		},
	}
	return true
}

func (p *Projection) finishWorkflow(e Event) bool {
	id := e.Payload.Str("workflow_id")
	if _, ok := p.workflows[id]; !ok {
		return false
	}
	delete(p.workflows, id)
	return true
}

func (p *Projection) resumeWorkflow(e Event) bool {
	id := e.Payload.Str("workflow_id")
	ent, ok := p.workflows[id]
	if !ok {
		return false
	}
	ent.value.Status = WorkflowRunning
	ent.value.UpdatedAt = e.Timestamp
	p.workflows[id] = ent
	return true
}

// PendingCheckpoints returns copies of the unresolved checkpoints in request order.
func (p *Projection) PendingCheckpoints() []Checkpoint {
	return sortedValues(p.checkpoints, Checkpoint.clone)
}

// ActiveWorkflows returns copies of the pending and running workflows in spawn order.
func (p *Projection) ActiveWorkflows() []Workflow {
	return sortedValues(p.workflows, func(w Workflow) Workflow { return w })
}

// Checkpoint returns the pending checkpoint with id.
func (p *Projection) Checkpoint(id string) (Checkpoint, bool) {
	ent, ok := p.checkpoints[id]
	if !ok {
		return Checkpoint{}, false
	}
	return ent.value.clone(), true
}

// Workflow returns the active workflow with id.
func (p *Projection) Workflow(id string) (Workflow, bool) {
	ent, ok := p.workflows[id]
	return ent.value, ok
}

func sortedValues[T any](m map[string]entry[T], cp func(T) T) []T {
	entries := make([]entry[T], 0, len(m))
	for _, ent := range m {
		entries = append(entries, ent)
	}
	slices.SortFunc(entries, func(a, b entry[T]) int {
		switch {
		case a.order < b.order:
			return -1
		case a.order > b.order:
			return 1
		}
		return 0
	})
	out := make([]T, len(entries))
	for i, ent := range entries {
		out[i] = cp(ent.value)
	}
	return out
}

// ExtractPendingCheckpoints derives the unresolved checkpoints from a log.
func ExtractPendingCheckpoints(events []Event) []Checkpoint {
	p := NewProjection()
	for _, e := range events {
		p.Apply(e)
	}
	return p.PendingCheckpoints()
}

// ExtractActiveWorkflows derives the pending and running workflows from a log.
func ExtractActiveWorkflows(events []Event) []Workflow {
	p := NewProjection()
	for _, e := range events {
		p.Apply(e)
	}
	return p.ActiveWorkflows()
}
