package session

import "sync/atomic"

// Clock is a monotonic logical clock stamping key generations.
//
// Every allocated or rotated key takes the next value, so two keys for the
// same (dataset, kind) never share a generation even if the token generator
// repeats itself.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific generation.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next generation and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current generation without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
