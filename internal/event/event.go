package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/hivelog/internal/payload"
)

// Event is the immutable unit of the log.
type Event struct {
	// ID is unique and sorts lexically in creation order.
	ID string `json:"id"`

	Type Type `json:"type"`

	// StreamID is the aggregate (root conversation or workflow) the event belongs to.
	StreamID string `json:"stream_id"`

	// CausationID is the id of the event that caused this one, if any.
	CausationID string `json:"causation_id,omitempty"`

	// CorrelationID groups events of one higher-level run across streams.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Actor is the human or agent that originated the event.
	Actor string `json:"actor,omitempty"`

	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Seq is the store-assigned global sequence number. It keeps increasing
	// across log rotations, unlike a store's file offset. Zero until appended.
	Seq int64 `json:"seq,omitempty"`

	Payload payload.Object `json:"payload"`
}

// Time returns the timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Input describes an event to be created. Zero ID and Timestamp are filled
// in by Create.
type Input struct {
	ID            string
	Type          Type
	StreamID      string
	CausationID   string
	CorrelationID string
	Actor         string
	Timestamp     int64
	Payload       payload.Object
}

// IDGenerator produces event and entity identifiers.
// Implemented by UUIDv7Generator (production) and testutil.SequenceIDs (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// The leading 48 bits are the Unix time in milliseconds, rendered as fixed
// width lowercase hex, so lexical order equals creation order across
// processes. The remaining bits are random (with a per-process monotonic
// counter inside the same millisecond).
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7 string.
// Panics if the random source fails, which does not happen in practice.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock returns the current wall time. Injected so tests can pin time.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time { return time.Now() }

// Create builds an Event from in, assigning an id and timestamp when absent.
// Create is total: it never fails and never mutates in.
func Create(in Input, ids IDGenerator, now Clock) Event {
	e := Event{
		ID:            in.ID,
		Type:          in.Type,
		StreamID:      in.StreamID,
		CausationID:   in.CausationID,
		CorrelationID: in.CorrelationID,
		Actor:         in.Actor,
		Timestamp:     in.Timestamp,
		Payload:       in.Payload.Clone(),
	}
	if e.ID == "" {
		if ids == nil {
			ids = UUIDv7Generator{}
		}
		e.ID = ids.Generate()
	}
	if e.Timestamp == 0 {
		if now == nil {
			now = SystemClock
		}
		e.Timestamp = now().UnixMilli()
	}
	if e.Payload == nil {
		e.Payload = payload.Object{}
	}
	return e
}
