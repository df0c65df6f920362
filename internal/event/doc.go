// Package event is the pure core of hivelog: event construction, filtering,
// lineage, line serialization, and the two derivations that turn a flat
// event list into live state (pending checkpoints, active workflows).
//
// Nothing in this package performs I/O, and every function is total:
// malformed or out-of-order input is handled defensively, never by failing.
//
// # Projection law
//
// Live state is always a pure function of the log:
//
//	pending_checkpoints = ExtractPendingCheckpoints(log)
//	active_workflows    = ExtractActiveWorkflows(log)
//
// Both extractors fold Projection.Apply over the events in append order, and
// the orchestrator applies the same function incrementally on every append.
// Sharing one transition function is what makes incremental state and replayed
// state identical.
//
// # Immutability
//
// Events are never edited. A checkpoint is rejected by appending a
// checkpoint.rejected event that references it, never by rewriting the
// original request.
package event
