package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the start time of a DeterministicClock created with a zero start.
var DefaultEpoch = time.UnixMilli(1_700_000_000_000).UTC()

// DeterministicClock is a manual clock for tests.
//
// Now returns the current instant and then advances it by Step, so every
// event created through it gets a distinct, increasing timestamp.
// Set Step to zero to freeze time.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock at start that advances 1ms per call.
// A zero start uses DefaultEpoch.
func NewDeterministicClock(start time.Time) *DeterministicClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &DeterministicClock{now: start, step: time.Millisecond}
}

// Now returns the current instant, then advances by the step.
// Has the signature of event.Clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the current instant without advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetStep changes the per-call advance.
func (c *DeterministicClock) SetStep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = d
}
