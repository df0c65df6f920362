package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/lock"
	"github.com/roach88/hivelog/internal/payload"
	"github.com/roach88/hivelog/internal/testutil"
)

// testOptions returns options for a log in a fresh temp dir with a frozen
// clock and a patient lock.
func testOptions(t *testing.T) (Options, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{})
	return Options{
		Path:  filepath.Join(t.TempDir(), "log", "events.jsonl"),
		Clock: clock.Now,
		Lock:  lock.Options{MaxTries: 1000, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, clock
}

func openTestStore(t *testing.T, opts Options) *FileStore {
	t.Helper()
	s, err := OpenFile(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(id, stream string, ts int64) event.Event {
	return event.Event{
		ID:        id,
		Type:      event.TypeRetry,
		StreamID:  stream,
		Timestamp: ts,
		Payload:   payload.Object{"attempt": payload.Int(1)},
	}
}

func appendN(t *testing.T, s Store, prefix, stream string, n int) []event.Event {
	t.Helper()
	out := make([]event.Event, 0, n)
	for i := 1; i <= n; i++ {
		e, err := s.Append(context.Background(), testEvent(fmt.Sprintf("%s-%03d", prefix, i), stream, int64(1_700_000_000_000+i)))
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func eventIDs(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
