package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of orchestrator operations plus the
// assertions that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDs are handed out first by the id generator, before the
	// id-0001, id-0002, ... fallback.
	IDs []string `yaml:"ids,omitempty"`

	// CheckpointTimeoutMs overrides the orchestrator's checkpoint timeout.
	CheckpointTimeoutMs int64 `yaml:"checkpoint_timeout_ms,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Stream string `yaml:"stream,omitempty"`
	Type   string `yaml:"type,omitempty"`
	Actor  string `yaml:"actor,omitempty"`

	// Payload is the event payload of an append. Floats are rejected.
	Payload map[string]any `yaml:"payload,omitempty"`

	// ID names the checkpoint or workflow an operation targets. For
	// spawn_workflow it fixes the new workflow's id.
	ID string `yaml:"id,omitempty"`

	Decision string   `yaml:"decision,omitempty"`
	Options  []string `yaml:"options,omitempty"`
	Option   string   `yaml:"option,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`

	Description string `yaml:"description,omitempty"`
	Parent      string `yaml:"parent,omitempty"`
	Result      string `yaml:"result,omitempty"`
	Error       string `yaml:"error,omitempty"`

	// Expect validates the step's return values. If nil, the step must
	// merely succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect specifies the expected outcome of a step.
type StepExpect struct {
	// ID is the id returned by append, request_checkpoint or spawn_workflow.
	ID string `yaml:"id,omitempty"`

	// OK is the boolean returned by resolutions and workflow transitions.
	OK *bool `yaml:"ok,omitempty"`

	// Error is a substring of the expected error. The step must fail.
	Error string `yaml:"error,omitempty"`

	// EventsReplayed is checked after a restart.
	EventsReplayed *int `yaml:"events_replayed,omitempty"`
}

// Step ops.
const (
	OpAppend            = "append"
	OpRequestCheckpoint = "request_checkpoint"
	OpApproveCheckpoint = "approve_checkpoint"
	OpRejectCheckpoint  = "reject_checkpoint"
	OpSpawnWorkflow     = "spawn_workflow"
	OpCompleteWorkflow  = "complete_workflow"
	OpFailWorkflow      = "fail_workflow"
	OpAbortWorkflow     = "abort_workflow"
	OpResumeWorkflow    = "resume_workflow"
	OpRotate            = "rotate"
	OpRestart           = "restart"
)

// Assertion validates the final log or projections.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is required by event_count and events_replayed.
	Count *int `yaml:"count,omitempty"`

	// EventType and Stream narrow event_count.
	EventType string `yaml:"event_type,omitempty"`
	Stream    string `yaml:"stream,omitempty"`

	// Types is the expected relative order for event_order.
	Types []string `yaml:"types,omitempty"`

	// IDs is the exact expected id list for pending_checkpoints and
	// active_workflows. An empty list asserts there are none.
	IDs []string `yaml:"ids"`
}

// Assertion type constants.
const (
	AssertEventCount         = "event_count"
	AssertEventOrder         = "event_order"
	AssertPendingCheckpoints = "pending_checkpoints"
	AssertActiveWorkflows    = "active_workflows"
	AssertEventsReplayed     = "events_replayed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, ordered by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.CheckpointTimeoutMs < 0 {
		return fmt.Errorf("checkpoint_timeout_ms must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	switch s.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpAppend:
		if s.Stream == "" || s.Type == "" {
			return fmt.Errorf("steps[%d]: stream and type are required for append", index)
		}
	case OpRequestCheckpoint:
		if s.Stream == "" || s.Decision == "" {
			return fmt.Errorf("steps[%d]: stream and decision are required for request_checkpoint", index)
		}
	case OpSpawnWorkflow:
		if s.Description == "" {
			return fmt.Errorf("steps[%d]: description is required for spawn_workflow", index)
		}
	case OpApproveCheckpoint, OpRejectCheckpoint,
		OpCompleteWorkflow, OpFailWorkflow, OpAbortWorkflow, OpResumeWorkflow:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", index, s.Op)
		}
	case OpRotate, OpRestart:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventCount, AssertEventsReplayed:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertEventOrder:
		if len(a.Types) == 0 {
			return fmt.Errorf("assertions[%d]: types list is required for event_order", index)
		}
	case AssertPendingCheckpoints, AssertActiveWorkflows:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids list is required for %s (use [] for none)", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
