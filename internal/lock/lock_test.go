package lock

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{MaxTries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestAcquireRelease(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	l := New(logPath, fastOptions())
	assert.Equal(t, logPath+".lock", l.Path())

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Release())

	// Release is idempotent.
	require.NoError(t, l.Release())

	// Reacquire after release.
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Release())
	assert.Equal(t, int64(0), l.ForceClears())
}

func TestAcquire_ForceClearsStaleLock(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	holder := New(logPath, fastOptions())
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Release()

	waiter := New(logPath, fastOptions())
	require.NoError(t, waiter.Acquire(context.Background()), "exhausted retries proceed after force-clear")
	assert.Equal(t, int64(1), waiter.ForceClears())
	require.NoError(t, waiter.Release())
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	holder := New(logPath, fastOptions())
	require.NoError(t, holder.Acquire(context.Background()))

	waiter := New(logPath, Options{MaxTries: 1000, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- waiter.Acquire(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, holder.Release())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	assert.Equal(t, int64(0), waiter.ForceClears())
	require.NoError(t, waiter.Release())
}

func TestAcquire_ContextCanceled(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	holder := New(logPath, fastOptions())
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	waiter := New(logPath, Options{MaxTries: 1000, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	err := waiter.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), waiter.ForceClears())

	// A failed Acquire leaves the lock usable.
	require.NoError(t, waiter.Release())
}

func TestAcquire_SerializesGoroutines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	l := New(logPath, DefaultOptions())

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			require.NoError(t, l.Release())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}
