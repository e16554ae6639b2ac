package clock

import "sync"

// Clock is a process-wide Lamport clock. Every locally originated message is
// stamped via Tick, and every received message advances the clock via Observe
// before its handler runs, so values stamped later are always greater than
// any value previously used or seen.
type Clock struct {
	mu  sync.Mutex
	val uint64
}

func New() *Clock {
	return &Clock{}
}

// Tick increments the clock and returns the new value. Values are strictly
// increasing across concurrent callers and never reused.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val++
	return c.val
}

// Observe merges a remote timestamp: the clock becomes max(local, remote)+1.
// Returns the new local value.
func (c *Clock) Observe(remote uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.val {
		c.val = remote
	}
	c.val++
	return c.val
}

// Now returns the current value without advancing it. Bookkeeping only; wire
// messages are stamped with Tick.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}
