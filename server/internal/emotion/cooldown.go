package emotion

import "time"

// Cooldown tracks when an action last succeeded and whether enough time has
// passed to run it again. The clock starts at construction.
type Cooldown struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewCooldown returns a Cooldown that becomes ready interval after now().
// A nil now uses time.Now.
func NewCooldown(interval time.Duration, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{interval: interval, last: now(), now: now}
}

// Ready reports whether at least interval has elapsed since the last Mark.
func (c *Cooldown) Ready() bool {
	return c.now().Sub(c.last) >= c.interval
}

// Mark records a success at the current time.
func (c *Cooldown) Mark() {
	c.last = c.now()
}
