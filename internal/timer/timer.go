// Package timer implements the countdown coupled to a timed exam
// session. It has no pause/resume: the clock runs while the session is
// active and is torn down when the session leaves that state.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// lowWaterSeconds marks the final stretch of an exam (under 5 minutes).
const lowWaterSeconds = 300

// Countdown counts down from a session's duration budget and invokes
// an expiry callback exactly once when it reaches zero, no matter how
// many ticks arrive afterwards.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	fired     bool

	onExpire func()
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a countdown of durationMinutes. onExpire is called once
// when the countdown reaches zero.
func New(durationMinutes int, onExpire func()) *Countdown {
	return &Countdown{
		remaining: durationMinutes * 60,
		onExpire:  onExpire,
		stop:      make(chan struct{}),
	}
}

// Start runs the countdown on a one-second ticker until it expires or
// Stop is called.
func (c *Countdown) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if c.Tick() {
					return
				}
			}
		}
	}()
}

// Tick advances the countdown by one second and reports whether it has
// expired. The expiry callback fires on the tick that reaches zero and
// never again.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.remaining > 0 {
		c.remaining--
	}
	fire := c.remaining == 0 && !c.fired
	if fire {
		c.fired = true
	}
	expired := c.remaining == 0
	c.mu.Unlock()

	if fire && c.onExpire != nil {
		c.onExpire()
	}
	return expired
}

// Stop tears the countdown down without firing the callback.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Low reports whether less than five minutes remain.
func (c *Countdown) Low() bool {
	return c.Remaining() < lowWaterSeconds
}

// Display formats the remaining time as minutes:seconds, seconds
// zero-padded.
func (c *Countdown) Display() string {
	r := c.Remaining()
	return fmt.Sprintf("%d:%02d", r/60, r%60)
}
