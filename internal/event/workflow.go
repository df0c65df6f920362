package event

// WorkflowStatus is the lifecycle state of a delegated workflow.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowAborted   WorkflowStatus = "aborted"
)

// Terminal reports whether no further transitions are expected.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case WorkflowCompleted, WorkflowFailed, WorkflowAborted:
		return true
	}
	return false
}

// Active reports whether the workflow belongs in the live projection.
func (s WorkflowStatus) Active() bool {
	return s == WorkflowPending || s == WorkflowRunning
}

// Workflow is a delegated unit of work tracked by the orchestrator.
type Workflow struct {
	ID           string         `json:"id"`
	StreamID     string         `json:"stream_id"`
	Description  string         `json:"description"`
	Executor     string         `json:"executor,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
	ParentStream string         `json:"parent_stream,omitempty"`
	TimeoutMs    int64          `json:"timeout_ms,omitempty"`
	Status       WorkflowStatus `json:"status"`
	CreatedAt    int64          `json:"created_at"`
	UpdatedAt    int64          `json:"updated_at"`
	Result       string         `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// WorkflowSpawnedPayload is the payload of workflow.spawned.
type WorkflowSpawnedPayload struct {
	WorkflowID   string         `json:"workflow_id"`
	Description  string         `json:"description"`
	Executor     string         `json:"executor,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
	ParentStream string         `json:"parent_stream,omitempty"`
	TimeoutMs    int64          `json:"timeout_ms,omitempty"`
	Status       WorkflowStatus `json:"status,omitempty"`
}

// WorkflowResultPayload is the payload of the terminal workflow events and
// of workflow.resumed.
type WorkflowResultPayload struct {
	WorkflowID string `json:"workflow_id"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}
