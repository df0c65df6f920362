// Package bridge translates host application lifecycle notifications into
// hivelog events.
//
// Each host kind maps to exactly one event type, and each translated payload
// carries session_id plus the kind's required fields. Bridge.Handle never
// returns an error: a notification that fails to translate or append is
// logged and counted, and the next one is processed normally.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

// Kind names a host notification.
type Kind string

const (
	KindSessionCreated   Kind = "session.created"
	KindSessionIdle      Kind = "session.idle"
	KindSessionCompacted Kind = "session.compacted"
	KindSessionError     Kind = "session.error"
	KindSessionDeleted   Kind = "session.deleted"
	KindSessionAborted   Kind = "session.aborted"
	KindStepStart        Kind = "step.start"
	KindStepFinish       Kind = "step.finish"
	KindToolStart        Kind = "tool.start"
	KindToolFinish       Kind = "tool.finish"
	KindTextDelta        Kind = "text.delta"
	KindReasoningDelta   Kind = "reasoning.delta"
	KindRetry            Kind = "retry"
	KindFileEdited       Kind = "file.edited"
	KindFilePatched      Kind = "file.patched"
)

// ErrUnknownKind is returned by Translate for kinds outside the table.
var ErrUnknownKind = errors.New("bridge: unknown host event kind")

// HostEvent is one notification from the host application.
type HostEvent struct {
	Kind      Kind
	SessionID string

	// ParentID is the root session of a child session. Events of a child
	// session go to the parent's stream.
	ParentID string

	Actor string
	At    time.Time
	Data  map[string]any
}

type mapping struct {
	typ      event.Type
	required []string
}

var mappings = map[Kind]mapping{
	KindSessionCreated:   {typ: event.TypeSessionCreated},
	KindSessionIdle:      {typ: event.TypeSessionIdle},
	KindSessionCompacted: {typ: event.TypeSessionCompacted},
	KindSessionError:     {typ: event.TypeSessionError, required: []string{"error"}},
	KindSessionDeleted:   {typ: event.TypeSessionDeleted},
	KindSessionAborted:   {typ: event.TypeSessionAborted},
	KindStepStart:        {typ: event.TypeStepStarted},
	KindStepFinish:       {typ: event.TypeStepFinished},
	KindToolStart:        {typ: event.TypeToolStarted, required: []string{"tool"}},
	KindToolFinish:       {typ: event.TypeToolFinished, required: []string{"tool"}},
	KindTextDelta:        {typ: event.TypeTextDelta, required: []string{"delta"}},
	KindReasoningDelta:   {typ: event.TypeReasoningDelta, required: []string{"delta"}},
	KindRetry:            {typ: event.TypeRetry},
	KindFileEdited:       {typ: event.TypeFilesChanged, required: []string{"path"}},
	KindFilePatched:      {typ: event.TypeFilesPatched, required: []string{"path"}},
}

// Kinds returns every supported host kind in sorted order.
func Kinds() []Kind {
	return slices.Sorted(maps.Keys(mappings))
}

// Translate converts a host notification into the input for one event.
func Translate(h HostEvent) (event.Input, error) {
	m, ok := mappings[h.Kind]
	if !ok {
		return event.Input{}, fmt.Errorf("%w: %q", ErrUnknownKind, h.Kind)
	}
	if h.SessionID == "" {
		return event.Input{}, fmt.Errorf("bridge: %s: session id is required", h.Kind)
	}
	for _, key := range m.required {
		if s, _ := h.Data[key].(string); s == "" {
			return event.Input{}, fmt.Errorf("bridge: %s: data field %q is required", h.Kind, key)
		}
	}

	data := make(map[string]any, len(h.Data)+2)
	maps.Copy(data, h.Data)
	data["session_id"] = h.SessionID
	if h.ParentID != "" {
		data["parent_id"] = h.ParentID
	}
	v, err := payload.FromAny(data)
	if err != nil {
		return event.Input{}, fmt.Errorf("bridge: %s: %w", h.Kind, err)
	}

	stream := h.SessionID
	if h.ParentID != "" {
		stream = h.ParentID
	}
	var ts int64
	if !h.At.IsZero() {
		ts = h.At.UnixMilli()
	}
	return event.Input{
		Type:      m.typ,
		StreamID:  stream,
		Actor:     h.Actor,
		Timestamp: ts,
		Payload:   v.(payload.Object),
	}, nil
}

// Appender is the part of the orchestrator the bridge writes through.
type Appender interface {
	Append(ctx context.Context, in event.Input) (event.Event, error)
}

// Bridge feeds host notifications into an Appender.
type Bridge struct {
	appender Appender
	logger   *slog.Logger

	failures atomic.Int64
	counter  metric.Int64Counter
}

// New creates a Bridge. A nil logger uses slog.Default().
func New(appender Appender, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		appender: appender,
		logger:   logger.With("component", "bridge"),
	}
	counter, err := otel.Meter("github.com/roach88/hivelog/internal/bridge").Int64Counter(
		"hivelog.bridge.failures",
		metric.WithDescription("Host notifications dropped by translation or append failures"))
	if err != nil {
		b.logger.Warn("metric registration failed", "error", err)
	}
	b.counter = counter
	return b
}

// Handle translates and appends h. Failures are logged and counted, never
// returned.
func (b *Bridge) Handle(ctx context.Context, h HostEvent) {
	in, err := Translate(h)
	if err != nil {
		b.fail(ctx, "translate", h, err)
		return
	}
	if _, err := b.appender.Append(ctx, in); err != nil {
		b.fail(ctx, "append", h, err)
	}
}

func (b *Bridge) fail(ctx context.Context, stage string, h HostEvent, err error) {
	b.failures.Add(1)
	if b.counter != nil {
		b.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("kind", string(h.Kind))))
	}
	b.logger.Error("dropped host event",
		"stage", stage,
		"kind", h.Kind,
		"session_id", h.SessionID,
		"error", err)
}

// Failures returns how many notifications were dropped.
func (b *Bridge) Failures() int64 { return b.failures.Load() }
