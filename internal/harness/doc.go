// Package harness runs YAML scenarios against a real file-backed
// orchestrator and checks the outcome.
//
// # Scenario Format
//
//	name: checkpoint_round_trip
//	description: "A checkpoint is requested, approved and survives a restart"
//	ids: [cp1]                   # scripted ids, then id-0001, id-0002, ...
//	checkpoint_timeout_ms: 60000 # optional
//	steps:
//	  - op: request_checkpoint
//	    stream: s
//	    decision: Deploy
//	    options: [yes, no]
//	    actor: alice
//	    expect: { id: cp1 }
//	  - op: approve_checkpoint
//	    id: cp1
//	    actor: bob
//	    option: yes
//	    expect: { ok: true }
//	  - op: restart
//	    expect: { events_replayed: 2 }
//	assertions:
//	  - type: pending_checkpoints
//	    ids: []
//
// Ops: append, request_checkpoint, approve_checkpoint, reject_checkpoint,
// spawn_workflow, complete_workflow, fail_workflow, abort_workflow,
// resume_workflow, rotate and restart. A restart drops the orchestrator,
// reopens the log from disk and calls Resume.
//
// # Assertion Types
//
//   - event_count: number of events in the log, optionally of one type or stream
//   - event_order: event types appear in the given relative order
//   - pending_checkpoints: exact ids of the pending checkpoints, in request order
//   - active_workflows: exact ids of the active workflows, in spawn order
//   - events_replayed: events replayed by the last restart
//
// # Deterministic Testing
//
// Every run uses a fresh log in a temporary directory, a
// testutil.DeterministicClock starting at testutil.DefaultEpoch and
// testutil.ScriptedIDs, so the resulting log is identical across runs and
// can be compared against golden files with RunWithGolden.
package harness
