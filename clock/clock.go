// Package clock lets the sequencer and the acquisition loop wait without
// tying tests to wall time.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock used for dwell and timeouts.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
}

var system = clockwork.NewRealClock()

// Real uses the system clock.
type Real struct{}

func (Real) Now() time.Time                  { return system.Now() }
func (Real) Since(t time.Time) time.Duration { return system.Since(t) }
func (Real) Sleep(d time.Duration)           { system.Sleep(d) }

// Manual is a fake clock that only moves when told to. Unlike
// clockwork.FakeClock.Sleep, which blocks until another goroutine advances
// the clock, Manual.Sleep advances it immediately and records the duration.
// Timers created on the embedded FakeClock fire as Sleep and Advance pass
// their deadline.
type Manual struct {
	*clockwork.FakeClock

	mu     sync.Mutex
	sleeps []time.Duration
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{FakeClock: clockwork.NewFakeClockAt(t)}
}

func (c *Manual) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	c.FakeClock.Advance(d)
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *Manual) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]time.Duration, len(c.sleeps))
	copy(res, c.sleeps)
	return res
}
