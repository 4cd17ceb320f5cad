package testutil

import "sync"

// FixedClock is a settable wall clock for tests.
//
// It satisfies ledger.Clock. The time only changes through Set or Advance, so
// every batch anchored against it carries a predictable timestamp and
// centroid seed.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu     sync.Mutex
	millis uint64
}

// NewFixedClock creates a clock frozen at millis.
func NewFixedClock(millis uint64) *FixedClock {
	return &FixedClock{millis: millis}
}

// NowMillis returns the frozen time.
func (c *FixedClock) NowMillis() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

// Set moves the clock to millis.
func (c *FixedClock) Set(millis uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis = millis
}

// Advance moves the clock forward by d milliseconds and returns the new time.
func (c *FixedClock) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis += d
	return c.millis
}
