// Package orchestrator is the stateful facade over the event log: append,
// query, live projections of pending checkpoints and active workflows,
// subscriptions, and crash recovery.
//
// # Projection equivalence
//
// Append persists first and only then folds the stored event into the
// projection with event.Projection.Apply. Resume rebuilds the projection by
// folding the same function over the full history. Because both paths share
// one transition function, state after any sequence of appends equals state
// after a Resume at that point.
//
// # Delivery
//
// Subscribers are notified synchronously, in append order, after each
// successful append. A handler may itself append: the nested event is queued
// and delivered once the current handler returns. Resume never notifies.
// A panicking handler is recovered and logged; it does not affect other
// handlers or the append that triggered it.
//
// # Thread-safety
//
// All methods are safe for concurrent use within one process. Separate
// processes coordinate only through the store's file lock; each process's
// projection reflects its own appends plus its last Resume.
package orchestrator
