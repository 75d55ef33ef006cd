package testutil

import (
	"sync"
	"time"
)

// FakeClock is a thread-safe manually advanced clock for tests.
//
// Pass clock.Now wherever a func() time.Time is accepted. Time only moves
// when Advance or Set is called, so staleness checks are deterministic.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Epoch is the default FakeClock start: 2025-01-01T00:00:00Z.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// NewFakeClock creates a clock at start. A zero start uses Epoch.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
