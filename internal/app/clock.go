package app

import (
	"sync"
	"time"
)

// Clock is the device's idea of the current time. An operator can
// shift it through the console to exercise the time-jump handling;
// the offset survives until the process restarts.
type Clock struct {
	mu     sync.Mutex
	offset time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current (possibly shifted) time in UTC.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().UTC().Add(c.offset)
}

// Override shifts the clock so that Now() reports t at this instant.
func (c *Clock) Override(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = time.Until(t.UTC())
}
