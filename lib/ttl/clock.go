package ttl

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the time source of the ttl manager
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// --------------------------------------------------------------------------
// Monotonic Clock
// --------------------------------------------------------------------------

// MonotonicClock never returns an instant earlier than one it returned
// before, even if the wrapped source steps backwards.
//
// Thread-safety: Now can be called concurrently.
type MonotonicClock struct {
	source Clock
	last   atomic.Int64 // unix nanos of the latest instant handed out
}

// NewMonotonicClock wraps source (nil = SystemClock)
func NewMonotonicClock(source Clock) *MonotonicClock {
	if source == nil {
		source = SystemClock{}
	}
	return &MonotonicClock{source: source}
}

func (c *MonotonicClock) Now() time.Time {
	now := c.source.Now().UnixNano()
	for {
		last := c.last.Load()
		if now <= last {
			return time.Unix(0, last)
		}
		if c.last.CompareAndSwap(last, now) {
			return time.Unix(0, now)
		}
	}
}

// --------------------------------------------------------------------------
// Manual Clock
// --------------------------------------------------------------------------

// ManualClock only moves when told to. Tests and simulations use it to
// drive expiry deterministically.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock standing at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t, backwards too
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
