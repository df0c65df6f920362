// Package store provides durable, ordered persistence for hivelog events.
//
// Two backends implement the Store contract:
//
//   - FileStore: the primary backend. An append-only JSONL file (one event
//     per line) with a cross-process append lock, size and date based
//     rotation, and a bounded in-memory cache.
//   - SQLiteStore: a queryable copy of the log in SQLite (WAL mode), used by
//     export. SQLite's own locking provides cross-process atomicity.
//
// # FileStore invariants
//
//   - Bytes already in the file are never rewritten. Every append opens the
//     file with O_APPEND, writes one complete line and fsyncs.
//   - All appends happen under the lock. While holding it a store first
//     catches up on lines written by other processes, then checks rotation,
//     then writes.
//   - Lines that fail to parse are skipped, never fatal. A partial trailing
//     line found under the lock is sealed with a newline so the next write
//     does not merge with it.
//   - Seq increases by one per append across rotations and processes.
//     Offset counts events in the active file only and resets on rotation.
//
// # Cache bound
//
// Query and ReadStream answer from a cache holding the most recent
// CacheEntries events of the active file. ReadAll re-reads archives and the
// active file from disk when complete history is needed.
package store
