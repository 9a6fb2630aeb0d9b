package testutil

import (
	"sync"
	"time"
)

// DefaultStart is the first time a DeterministicClock returns.
var DefaultStart = time.Date(2024, time.January, 2, 10, 0, 0, 0, time.Local)

// DeterministicClock is a wall clock for tests that advances by a fixed step
// on every call to Now.
//
// The first call returns the start time, so timestamps and action log keys
// are reproducible across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewDeterministicClock creates a clock starting at DefaultStart that
// advances one second per call.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultStart, time.Second)
}

// NewDeterministicClockAt creates a clock starting at start that advances
// by step per call. A zero step freezes the clock.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// Now returns the current time and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock so the next Now returns the start time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
