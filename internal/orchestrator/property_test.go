package orchestrator

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
	"github.com/roach88/hivelog/internal/store"
	"github.com/roach88/hivelog/internal/testutil"
)

// op is one orchestrator call in a generated history.
type op int

const (
	opRequest op = iota
	opApprove
	opReject
	opApproveUnknown
	opSpawn
	opResume
	opComplete
	opFail
	opOther
	opCount
)

// step is one generated call plus the free text it carries.
type step struct {
	op   op
	text string
}

// run applies steps to o. Targets of approvals are resolved against live
// state; workflows are addressed by the id exactly as the caller gave it.
// Only steps whose text is not valid UTF-8 may fail.
func run(ctx context.Context, o *Orchestrator, steps []step) error {
	var spawned []string
	for i, s := range steps {
		var (
			err    error
			called = true
		)
		switch s.op {
		case opRequest:
			_, err = o.RequestCheckpoint(ctx, CheckpointRequest{StreamID: "s", Decision: fmt.Sprintf("d%d %s", i, s.text), Options: yesNo()})
		case opApprove:
			called = false
			if cps := o.PendingCheckpoints(); len(cps) > 0 {
				_, err = o.ApproveCheckpoint(ctx, cps[0].ID, "bob", "yes")
			}
		case opReject:
			called = false
			if cps := o.PendingCheckpoints(); len(cps) > 0 {
				called = true
				_, err = o.RejectCheckpoint(ctx, cps[len(cps)-1].ID, "bob", s.text)
			}
		case opApproveUnknown:
			_, err = o.ApproveCheckpoint(ctx, "unknown"+s.text, "bob", "")
		case opSpawn:
			id := fmt.Sprintf("w%d-%s", i, s.text)
			_, err = o.CreateWorkflow(ctx, WorkflowSpec{ID: id, Description: s.text, ParentStream: "s"})
			if err == nil {
				spawned = append(spawned, id)
			}
		case opResume:
			called = false
			if len(spawned) > 0 {
				_, err = o.ResumeWorkflow(ctx, spawned[len(spawned)-1])
			}
		case opComplete:
			called = false
			if len(spawned) > 0 {
				called = true
				_, err = o.CompleteWorkflow(ctx, spawned[0], s.text)
			}
		case opFail:
			called = false
			if len(spawned) > 0 {
				called = true
				_, err = o.FailWorkflow(ctx, spawned[len(spawned)-1], s.text)
			}
		case opOther:
			_, err = o.Append(ctx, event.Input{
				Type:     event.TypeRetry,
				StreamID: "s",
				Payload:  payload.Object{"attempt": payload.Int(int64(i)), "note": payload.String(s.text)},
			})
		}
		valid := utf8.ValidString(s.text)
		if err != nil && valid {
			return fmt.Errorf("step %d %v: %w", i, s.op, err)
		}
		if err == nil && !valid && called {
			return fmt.Errorf("step %d %v: accepted invalid text %q", i, s.op, s.text)
		}
	}
	return nil
}

// genText yields ASCII, arbitrary Unicode, strings with distinct NFC and NFD
// forms, and byte strings that are not valid UTF-8.
func genText() gopter.Gen {
	return gen.OneGenOf(
		gen.AlphaString(),
		gen.UnicodeString(unicode.Latin),
		gen.AnyString(),
		gen.OneConstOf("e\u0301", "\u00e9", "A\u030a", "\u212b", "\u1e9b\u0323", "\ufb01").
			Map(func(v any) string { return v.(string) }),
		gen.OneConstOf("\xff", "a\xc3", "\xed\xa0\x80x", "\xc0\xaf").
			Map(func(v any) string { return v.(string) }),
	)
}

func genSteps() gopter.Gen {
	return gen.SliceOf(gopter.CombineGens(
		gen.IntRange(0, int(opCount)-1),
		genText(),
	).Map(func(v []any) step {
		return step{op: op(v[0].(int)), text: v[1].(string)}
	}))
}

// sameState reports whether live matches replayed, the Resume result and the
// pure extractors over events.
func sameState(live, replayed *Orchestrator, res ResumeResult, events []event.Event) bool {
	pending := live.PendingCheckpoints()
	active := live.ActiveWorkflows()
	return reflect.DeepEqual(pending, replayed.PendingCheckpoints()) &&
		reflect.DeepEqual(active, replayed.ActiveWorkflows()) &&
		reflect.DeepEqual(pending, res.PendingCheckpoints) &&
		reflect.DeepEqual(active, res.ActiveWorkflows) &&
		reflect.DeepEqual(pending, event.ExtractPendingCheckpoints(events)) &&
		reflect.DeepEqual(active, event.ExtractActiveWorkflows(events))
}

// TestReplayEquivalenceProperty verifies that projections built by live
// appends equal projections rebuilt by Resume, and equal the pure
// extractors over the same log.
func TestReplayEquivalenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("live state equals replayed state", prop.ForAll(
		func(steps []step) bool {
			ctx := context.Background()
			live, m := newMemOrchestrator(t)
			if err := run(ctx, live, steps); err != nil {
				t.Log(err)
				return false
			}

			replayed := New(m)
			res, err := replayed.Resume(ctx)
			if err != nil || res.EventsReplayed != len(m.events) {
				return false
			}
			return sameState(live, replayed, res, m.events)
		},
		genSteps(),
	))

	properties.TestingRun(t)
}

// TestReplayEquivalenceProperty_FileStore runs the same histories through a
// FileStore and rebuilds from the bytes on disk in a fresh process.
func TestReplayEquivalenceProperty_FileStore(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	parameters.MaxSize = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("live state equals state replayed from disk", prop.ForAll(
		func(steps []step) bool {
			ctx := context.Background()
			f := newFileFixture(t)
			live := f.open(t, WithIDGenerator(testutil.NewSequenceIDs("id")))
			if err := run(ctx, live, steps); err != nil {
				t.Log(err)
				return false
			}

			replayed := f.open(t)
			res, err := replayed.Resume(ctx)
			if err != nil {
				return false
			}
			s, err := replayed.Store(ctx)
			if err != nil {
				return false
			}
			events, err := s.(*store.FileStore).ReadAll(ctx)
			if err != nil || res.EventsReplayed != len(events) {
				return false
			}
			return sameState(live, replayed, res, events)
		},
		genSteps(),
	))

	properties.TestingRun(t)
}
