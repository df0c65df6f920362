package harness

import (
	"github.com/roach88/hivelog/internal/event"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Events is the full log after the last step, in append order.
	Events []event.Event `json:"events"`

	PendingCheckpoints []event.Checkpoint `json:"pending_checkpoints"`
	ActiveWorkflows    []event.Workflow   `json:"active_workflows"`

	// Replayed is the event count reported by the last restart.
	Replayed int `json:"replayed"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:               true,
		Events:             []event.Event{},
		PendingCheckpoints: []event.Checkpoint{},
		ActiveWorkflows:    []event.Workflow{},
		Errors:             []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
