package store

import (
	"context"

	"github.com/roach88/hivelog/internal/event"
)

// Store is durable, ordered event persistence.
//
// Implemented by FileStore (primary) and SQLiteStore (export target).
type Store interface {
	// Append persists e and returns it with its assigned Seq. It is atomic
	// with respect to other writers of the same log.
	Append(ctx context.Context, e event.Event) (event.Event, error)

	// ReadStream returns the events of one stream at or after fromOffset,
	// where fromOffset is a position as reported by Offset.
	ReadStream(ctx context.Context, streamID string, fromOffset int) ([]event.Event, error)

	// Query returns the events matching f in append order.
	Query(ctx context.Context, f event.Filter) ([]event.Event, error)

	// Offset returns the number of events in the active log.
	Offset() int

	Close() error
}

// Compile-time interface checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
