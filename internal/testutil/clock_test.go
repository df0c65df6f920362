package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_DefaultEpoch(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	assert.Equal(t, DefaultEpoch, clock.Peek())
}

func TestDeterministicClock_NowAdvancesByStep(t *testing.T) {
	start := time.UnixMilli(1000)
	clock := NewDeterministicClock(start)

	// First call returns the start instant
	assert.Equal(t, int64(1000), clock.Now().UnixMilli())
	assert.Equal(t, int64(1001), clock.Now().UnixMilli())
	assert.Equal(t, int64(1002), clock.Peek().UnixMilli())
}

func TestDeterministicClock_AdvanceAndFreeze(t *testing.T) {
	clock := NewDeterministicClock(time.UnixMilli(0))
	clock.SetStep(0)
	clock.Advance(5 * time.Minute)

	assert.Equal(t, int64(300000), clock.Now().UnixMilli())
	assert.Equal(t, int64(300000), clock.Now().UnixMilli())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(time.UnixMilli(0))
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	var mu sync.Mutex
	seen := make(map[int64]bool)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				ms := clock.Now().UnixMilli()
				mu.Lock()
				seen[ms] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every call observed a distinct instant
	require.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, int64(numGoroutines*callsPerGoroutine), clock.Peek().UnixMilli())
}
