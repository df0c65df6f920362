package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/hivelog/internal/config"
	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/store"
)

// DefaultCheckpointTimeout is how long a checkpoint stays unexpired.
const DefaultCheckpointTimeout = 5 * time.Minute

// ErrClosed is returned by operations after Close.
var ErrClosed = errors.New("orchestrator: closed")

// ErrInvalidOption is returned when approving with an option the
// checkpoint did not offer.
var ErrInvalidOption = errors.New("orchestrator: option not offered by checkpoint")

// ErrInvalidText is returned when a caller string is not valid UTF-8.
var ErrInvalidText = errors.New("orchestrator: text is not valid UTF-8")

// Orchestrator owns a store and the live projections derived from it.
type Orchestrator struct {
	clock             event.Clock
	ids               event.IDGenerator
	checkpointTimeout time.Duration
	logger            *slog.Logger
	meter             metric.Meter
	metrics           *metrics

	// openStore prepares the store lazily on Initialize.
	openStore func(context.Context) (store.Store, error)

	mu          sync.Mutex
	store       store.Store
	initialized bool
	closed      bool
	proj        *event.Projection
	pending     []event.Event // appended, not yet delivered
	delivering  bool

	subs subscriptions
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source for event timestamps and expiries.
func WithClock(clock event.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithIDGenerator sets the generator for event, workflow and checkpoint ids.
func WithIDGenerator(ids event.IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = ids }
}

// WithCheckpointTimeout sets the expiry window of new checkpoints.
func WithCheckpointTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.checkpointTimeout = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMeter sets the metric meter. Default: the global otel meter provider.
func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) { o.meter = m }
}

// New creates an Orchestrator over an already open store.
func New(s store.Store, opts ...Option) *Orchestrator {
	o := newOrchestrator(opts)
	o.store = s
	return o
}

// Open creates an Orchestrator whose FileStore is opened from cfg on
// Initialize.
func Open(cfg config.Config, opts ...Option) *Orchestrator {
	if cfg.CheckpointTimeoutMs > 0 {
		opts = append([]Option{WithCheckpointTimeout(cfg.CheckpointTimeout())}, opts...)
	}
	o := newOrchestrator(opts)
	o.openStore = func(ctx context.Context) (store.Store, error) {
		sopts := cfg.StoreOptions()
		sopts.Clock = o.clock
		sopts.Logger = o.logger
		sopts.Meter = o.meter
		return store.OpenFile(ctx, sopts)
	}
	return o
}

func newOrchestrator(opts []Option) *Orchestrator {
	o := &Orchestrator{
		clock:             time.Now,
		ids:               event.UUIDv7Generator{},
		checkpointTimeout: DefaultCheckpointTimeout,
		proj:              event.NewProjection(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "orchestrator")
	o.metrics = newMetrics(o.meter, o.logger)
	return o
}

// Initialize prepares the store. It is idempotent and is called implicitly
// by every operation that needs the store.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initLocked(ctx)
}

func (o *Orchestrator) initLocked(ctx context.Context) error {
	if o.closed {
		return ErrClosed
	}
	if o.initialized {
		return nil
	}
	if o.store == nil {
		if o.openStore == nil {
			return errors.New("orchestrator: no store")
		}
		s, err := o.openStore(ctx)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		o.store = s
	}
	o.initialized = true
	return nil
}

// Store returns the underlying store, initializing it if needed.
func (o *Orchestrator) Store(ctx context.Context) (store.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.initLocked(ctx); err != nil {
		return nil, err
	}
	return o.store, nil
}

// ResumeResult summarizes a recovery.
type ResumeResult struct {
	EventsReplayed     int                `json:"events_replayed"`
	PendingCheckpoints []event.Checkpoint `json:"pending_checkpoints"`
	ActiveWorkflows    []event.Workflow   `json:"active_workflows"`
	LastEventTime      int64              `json:"last_event_time"`
}

// historyReader is implemented by stores that can read past their cache
// bound and across rotations.
type historyReader interface {
	ReadAll(ctx context.Context) ([]event.Event, error)
}

// Resume rebuilds the projections from the log. It is the only recovery
// path after a restart; no other state is trusted. Subscribers are not
// notified.
func (o *Orchestrator) Resume(ctx context.Context) (ResumeResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.initLocked(ctx); err != nil {
		return ResumeResult{}, err
	}

	var (
		events []event.Event
		err    error
	)
	if hr, ok := o.store.(historyReader); ok {
		events, err = hr.ReadAll(ctx)
	} else {
		events, err = o.store.Query(ctx, event.Filter{})
	}
	if err != nil {
		return ResumeResult{}, fmt.Errorf("resume: %w", err)
	}

	proj := event.NewProjection()
	var last int64
	for _, e := range events {
		proj.Apply(e)
		last = max(last, e.Timestamp)
	}
	o.proj = proj
	o.metrics.resumes.Add(ctx, 1)

	result := ResumeResult{
		EventsReplayed:     len(events),
		PendingCheckpoints: proj.PendingCheckpoints(),
		ActiveWorkflows:    proj.ActiveWorkflows(),
		LastEventTime:      last,
	}
	o.logger.Info("resumed from log",
		"events_replayed", result.EventsReplayed,
		"pending_checkpoints", len(result.PendingCheckpoints),
		"active_workflows", len(result.ActiveWorkflows))
	return result, nil
}

// Append creates an event from in, persists it, updates the projections and
// notifies subscribers. On error nothing changes.
func (o *Orchestrator) Append(ctx context.Context, in event.Input) (event.Event, error) {
	o.mu.Lock()
	e, err := o.appendLocked(ctx, in)
	o.mu.Unlock()
	if err != nil {
		return event.Event{}, err
	}
	o.drain()
	return e, nil
}

// appendLocked persists one event and applies it. Caller holds o.mu and
// must call drain after unlocking.
func (o *Orchestrator) appendLocked(ctx context.Context, in event.Input) (event.Event, error) {
	if err := o.initLocked(ctx); err != nil {
		return event.Event{}, err
	}
	if in.StreamID == "" {
		return event.Event{}, errors.New("append: stream id is required")
	}
	if !in.Type.Valid() {
		return event.Event{}, fmt.Errorf("append: unknown event type %q", in.Type)
	}

	if err := validText(in.StreamID, in.CausationID, in.CorrelationID, in.Actor); err != nil {
		return event.Event{}, fmt.Errorf("append %s: %w", in.Type, err)
	}

	// Apply the event in the form a replay will read it back.
	e, err := event.Canonical(event.Create(in, o.ids, o.clock))
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s: %w", in.Type, err)
	}
	stored, err := o.store.Append(ctx, e)
	if err != nil {
		o.metrics.appendFailures.Add(ctx, 1)
		return event.Event{}, fmt.Errorf("append %s: %w", in.Type, err)
	}
	o.proj.Apply(stored)
	o.pending = append(o.pending, stored)
	o.metrics.appends.Add(ctx, 1)
	o.logger.Debug("appended event", "id", stored.ID, "type", stored.Type, "seq", stored.Seq)
	return stored, nil
}

// validText rejects strings that would be altered on their way to disk.
func validText(fields ...string) error {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return fmt.Errorf("%w: %q", ErrInvalidText, f)
		}
	}
	return nil
}

// Query returns the events matching f.
func (o *Orchestrator) Query(ctx context.Context, f event.Filter) ([]event.Event, error) {
	s, err := o.Store(ctx)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, f)
}

// ReadStream returns one stream's events at or after fromOffset.
func (o *Orchestrator) ReadStream(ctx context.Context, streamID string, fromOffset int) ([]event.Event, error) {
	s, err := o.Store(ctx)
	if err != nil {
		return nil, err
	}
	return s.ReadStream(ctx, streamID, fromOffset)
}

// Offset returns the store's offset, or 0 before Initialize.
func (o *Orchestrator) Offset() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store == nil || o.closed {
		return 0
	}
	return o.store.Offset()
}

// Close closes the store. Further operations return ErrClosed.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if o.store == nil {
		return nil
	}
	return o.store.Close()
}
