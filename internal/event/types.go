package event

import "strings"

// Type is the literal event type recorded on every log line.
//
// The set is closed and append-only: new literals may be added, existing
// ones are never renamed, because historical lines reference them verbatim.
type Type string

const (
	// Lifecycle events mirror host session state.
	TypeSessionCreated   Type = "lifecycle.session.created"
	TypeSessionIdle      Type = "lifecycle.session.idle"
	TypeSessionCompacted Type = "lifecycle.session.compacted"
	TypeSessionError     Type = "lifecycle.session.error"
	TypeSessionDeleted   Type = "lifecycle.session.deleted"
	TypeSessionAborted   Type = "lifecycle.session.aborted"

	// Execution events mark step and tool boundaries.
	TypeStepStarted    Type = "execution.step.started"
	TypeStepFinished   Type = "execution.step.finished"
	TypeToolStarted    Type = "execution.tool.started"
	TypeToolFinished   Type = "execution.tool.finished"
	TypeTextDelta      Type = "execution.text.delta"
	TypeReasoningDelta Type = "execution.reasoning.delta"
	TypeRetry          Type = "execution.retry"

	// Workflow events track delegated units of work.
	TypeWorkflowSpawned   Type = "workflow.spawned"
	TypeWorkflowCompleted Type = "workflow.completed"
	TypeWorkflowFailed    Type = "workflow.failed"
	TypeWorkflowAborted   Type = "workflow.aborted"
	TypeWorkflowHandoff   Type = "workflow.handoff"
	TypeWorkflowYield     Type = "workflow.yield"
	TypeWorkflowResumed   Type = "workflow.resumed"

	// Checkpoint events implement the human approval protocol.
	TypeCheckpointRequested Type = "checkpoint.requested"
	TypeCheckpointApproved  Type = "checkpoint.approved"
	TypeCheckpointRejected  Type = "checkpoint.rejected"

	// File change notifications.
	TypeFilesChanged Type = "files.changed"
	TypeFilesPatched Type = "files.patched"

	TypeLearningExtracted Type = "learning.extracted"

	// Ledger events carry epic/task/governance bookkeeping.
	TypeLedgerEpicCreated       Type = "ledger.epic.created"
	TypeLedgerEpicClosed        Type = "ledger.epic.closed"
	TypeLedgerTaskCreated       Type = "ledger.task.created"
	TypeLedgerTaskUpdated       Type = "ledger.task.updated"
	TypeLedgerTaskClosed        Type = "ledger.task.closed"
	TypeLedgerGovernanceDecided Type = "ledger.governance.decided"
)

// Wildcard matches every type when subscribing.
const Wildcard Type = "*"

var allTypes = []Type{
	TypeSessionCreated, TypeSessionIdle, TypeSessionCompacted,
	TypeSessionError, TypeSessionDeleted, TypeSessionAborted,
	TypeStepStarted, TypeStepFinished, TypeToolStarted, TypeToolFinished,
	TypeTextDelta, TypeReasoningDelta, TypeRetry,
	TypeWorkflowSpawned, TypeWorkflowCompleted, TypeWorkflowFailed,
	TypeWorkflowAborted, TypeWorkflowHandoff, TypeWorkflowYield, TypeWorkflowResumed,
	TypeCheckpointRequested, TypeCheckpointApproved, TypeCheckpointRejected,
	TypeFilesChanged, TypeFilesPatched,
	TypeLearningExtracted,
	TypeLedgerEpicCreated, TypeLedgerEpicClosed,
	TypeLedgerTaskCreated, TypeLedgerTaskUpdated, TypeLedgerTaskClosed,
	TypeLedgerGovernanceDecided,
}

var knownTypes = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(allTypes))
	for _, t := range allTypes {
		m[t] = struct{}{}
	}
	return m
}()

// AllTypes returns every known type in declaration order.
func AllTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is a known literal.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Category groups types by their namespace prefix.
type Category string

const (
	CategoryLifecycle  Category = "lifecycle"
	CategoryExecution  Category = "execution"
	CategoryWorkflow   Category = "workflow"
	CategoryCheckpoint Category = "checkpoint"
	CategoryFiles      Category = "files"
	CategoryLearning   Category = "learning"
	CategoryLedger     Category = "ledger"
)

// Category returns the namespace of t ("workflow" for "workflow.spawned").
func (t Type) Category() Category {
	prefix, _, _ := strings.Cut(string(t), ".")
	return Category(prefix)
}

// ParseType converts s to a Type, reporting whether it is known.
func ParseType(s string) (Type, bool) {
	t := Type(strings.TrimSpace(s))
	return t, t.Valid()
}
