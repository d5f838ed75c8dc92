// Package clock provides the single source of "now" for the auction engine.
// Nothing in the engine reads wall-clock time directly; tests drive auctions
// through their lifecycle with a ManualClock.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock time in UTC
type SystemClock struct{}

// NewSystemClock creates a wall-clock backed Clock
func NewSystemClock() SystemClock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a settable, steppable virtual clock
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock creates a ManualClock frozen at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance steps the clock forward by d and returns the new instant
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
