package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/lock"
	"github.com/roach88/hivelog/internal/payload"
	"github.com/roach88/hivelog/internal/store"
	"github.com/roach88/hivelog/internal/testutil"
)

var errInjected = errors.New("injected append failure")

// memStore is an in-memory store.Store without ReadAll, so Resume falls back
// to Query.
type memStore struct {
	mu      sync.Mutex
	events  []event.Event
	failErr error
}

func (m *memStore) Append(_ context.Context, e event.Event) (event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return event.Event{}, m.failErr
	}
	e.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return e, nil
}

func (m *memStore) ReadStream(_ context.Context, streamID string, fromOffset int) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []event.Event{}
	for _, e := range m.events[min(max(fromOffset, 0), len(m.events)):] {
		if e.StreamID == streamID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Query(_ context.Context, f event.Filter) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return event.Apply(m.events, f), nil
}

func (m *memStore) Offset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memStore) Close() error { return nil }

var _ store.Store = (*memStore)(nil)

// fileFixture is a log path plus the clock shared by every store opened on it.
type fileFixture struct {
	path  string
	clock *testutil.DeterministicClock
}

func newFileFixture(t *testing.T) *fileFixture {
	t.Helper()
	return &fileFixture{
		path:  filepath.Join(t.TempDir(), "events.jsonl"),
		clock: testutil.NewDeterministicClock(time.Time{}),
	}
}

// open opens a fresh FileStore on the fixture path, as a restarted process would.
func (f *fileFixture) open(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	s, err := store.OpenFile(context.Background(), store.Options{
		Path:  f.path,
		Clock: f.clock.Now,
		Lock:  lock.Options{MaxTries: 1000, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	o := New(s, append([]Option{WithClock(f.clock.Now)}, opts...)...)
	t.Cleanup(func() { o.Close() })
	return o
}

func newMemOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *memStore) {
	t.Helper()
	m := &memStore{}
	clock := testutil.NewDeterministicClock(time.Time{})
	o := New(m, append([]Option{WithClock(clock.Now), WithIDGenerator(testutil.NewSequenceIDs("id"))}, opts...)...)
	return o, m
}

func retryInput(stream string, attempt int64) event.Input {
	return event.Input{
		Type:     event.TypeRetry,
		StreamID: stream,
		Payload:  payload.Object{"attempt": payload.Int(attempt)},
	}
}

func yesNo() []event.Option {
	return []event.Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}}
}

func eventTypes(events []event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
