package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hivelog/internal/event"
)

// AssertionError is returned when an assertion fails. It carries the log so
// the failure can be read without rerunning the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Events   []event.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull log:\n")
	for _, ev := range e.Events {
		fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.Type, ev.StreamID, ev.ID)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result.Events, a)
	case AssertEventOrder:
		return assertEventOrder(result.Events, a)
	case AssertPendingCheckpoints:
		ids := make([]string, len(result.PendingCheckpoints))
		for i, cp := range result.PendingCheckpoints {
			ids[i] = cp.ID
		}
		return assertIDs(a.Type, ids, a.IDs, result.Events)
	case AssertActiveWorkflows:
		ids := make([]string, len(result.ActiveWorkflows))
		for i, wf := range result.ActiveWorkflows {
			ids[i] = wf.ID
		}
		return assertIDs(a.Type, ids, a.IDs, result.Events)
	case AssertEventsReplayed:
		if result.Replayed != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d events replayed", *a.Count),
				Actual:   fmt.Sprintf("%d events replayed", result.Replayed),
				Events:   result.Events,
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

// assertEventCount checks how many events match the optional type and
// stream filters.
func assertEventCount(events []event.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if a.EventType != "" && string(e.Type) != a.EventType {
			continue
		}
		if a.Stream != "" && e.StreamID != a.Stream {
			continue
		}
		count++
	}
	if count == *a.Count {
		return nil
	}

	what := "events"
	if a.EventType != "" {
		what = a.EventType + " events"
	}
	if a.Stream != "" {
		what += " in stream " + a.Stream
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s", *a.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Events:   events,
	}
}

// assertEventOrder checks that the first occurrence of each type comes
// after the first occurrence of the previous one. Other events may come in
// between.
func assertEventOrder(events []event.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range events {
		if _, seen := positions[string(e.Type)]; !seen {
			positions[string(e.Type)] = i + 1
		}
	}

	for _, typ := range a.Types {
		if positions[typ] == 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("all types present: %v", a.Types),
				Actual:   fmt.Sprintf("missing type: %s", typ),
				Events:   events,
			}
		}
	}
	for i := 1; i < len(a.Types); i++ {
		prev, curr := a.Types[i-1], a.Types[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("types in order: %v", a.Types),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Events: events,
			}
		}
	}
	return nil
}

func assertIDs(typ string, got, want []string, events []event.Event) error {
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Events:   events,
	}
}
