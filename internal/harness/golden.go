package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

// Snapshot is the observable outcome of a scenario: the full log and the
// projections after the last step.
type Snapshot struct {
	ScenarioName       string             `json:"scenario_name"`
	Events             []event.Event      `json:"events"`
	PendingCheckpoints []event.Checkpoint `json:"pending_checkpoints"`
	ActiveWorkflows    []event.Workflow   `json:"active_workflows"`
}

// NewSnapshot captures result under name.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{
		ScenarioName:       name,
		Events:             result.Events,
		PendingCheckpoints: result.PendingCheckpoints,
		ActiveWorkflows:    result.ActiveWorkflows,
	}
	if s.Events == nil {
		s.Events = []event.Event{}
	}
	if s.PendingCheckpoints == nil {
		s.PendingCheckpoints = []event.Checkpoint{}
	}
	if s.ActiveWorkflows == nil {
		s.ActiveWorkflows = []event.Workflow{}
	}
	return s
}

// Marshal encodes the snapshot as one line of canonical JSON followed by a
// newline.
func (s Snapshot) Marshal() ([]byte, error) {
	obj, err := payload.FromStruct(s)
	if err != nil {
		return nil, err
	}
	data, err := payload.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A snapshot mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// name without rerunning the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
