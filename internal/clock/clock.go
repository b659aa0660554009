// Package clock implements the per-room dual countdown timer with
// increment-on-move semantics. Time is computed from wall-clock deltas at
// discrete event points; the clock never runs a goroutine of its own, so
// expiry checks and move completion stay serialized by the owning room.
package clock

import (
	"time"

	"github.com/park285/chess-live-server/internal/engine"
)

// Clock tracks remaining time for both sides of one game. All methods take
// the current time explicitly; the zero Duration floor is enforced on every
// deduction.
type Clock struct {
	remaining map[engine.Color]time.Duration
	increment time.Duration
	running   engine.Color // "" before the game starts or after expiry
	lastEvent time.Time
}

// New builds a clock with the same initial budget on both sides.
func New(initial, increment time.Duration) *Clock {
	return &Clock{
		remaining: map[engine.Color]time.Duration{
			engine.White: initial,
			engine.Black: initial,
		},
		increment: increment,
	}
}

// Start marks one side's counter as running. Idempotent when that side is
// already running.
func (c *Clock) Start(active engine.Color, now time.Time) {
	if c.running == active {
		return
	}
	c.running = active
	c.lastEvent = now
}

// Running returns the side whose counter is active, or "" if none.
func (c *Clock) Running() engine.Color { return c.running }

// IncrementMs returns the per-move increment in milliseconds.
func (c *Clock) IncrementMs() int64 { return c.increment.Milliseconds() }

// Elapsed reports how long the running side has been on the move, without
// mutating state. Zero when no side is running.
func (c *Clock) Elapsed(now time.Time) time.Duration {
	if c.running == "" {
		return 0
	}
	if d := now.Sub(c.lastEvent); d > 0 {
		return d
	}
	return 0
}

// Remaining returns both budgets in milliseconds with the running side's
// live consumption already deducted (display value; state is untouched).
func (c *Clock) Remaining(now time.Time) (whiteMs, blackMs int64) {
	w := c.remaining[engine.White]
	b := c.remaining[engine.Black]
	if e := c.Elapsed(now); e > 0 {
		switch c.running {
		case engine.White:
			w -= e
		case engine.Black:
			b -= e
		}
	}
	return clampMs(w), clampMs(b)
}

// ApplyMoveCompletion deducts the mover's real elapsed time and, when time
// remains, credits the increment and hands the clock to the opponent. A
// budget that reaches zero stays at zero, receives no increment, and stops
// the clock; the caller detects this through Expired.
func (c *Clock) ApplyMoveCompletion(mover engine.Color, now time.Time) (whiteMs, blackMs int64) {
	if c.running == mover {
		left := c.remaining[mover] - c.Elapsed(now)
		if left <= 0 {
			c.remaining[mover] = 0
			c.running = ""
		} else {
			c.remaining[mover] = left + c.increment
			c.running = mover.Opponent()
		}
		c.lastEvent = now
	}
	return clampMs(c.remaining[engine.White]), clampMs(c.remaining[engine.Black])
}

// FlagIfExpired settles the running side's budget when its live consumption
// has exhausted it, stopping the clock. Returns true when a flag fell.
func (c *Clock) FlagIfExpired(now time.Time) bool {
	if c.running == "" {
		return false
	}
	if c.remaining[c.running]-c.Elapsed(now) > 0 {
		return false
	}
	c.remaining[c.running] = 0
	c.running = ""
	c.lastEvent = now
	return true
}

// Expired reports whether the side's budget has reached zero.
func (c *Clock) Expired(color engine.Color) bool {
	return c.remaining[color] <= 0
}

// Stop halts the clock without touching budgets (terminal states not caused
// by time).
func (c *Clock) Stop(now time.Time) {
	if c.running == "" {
		return
	}
	left := c.remaining[c.running] - c.Elapsed(now)
	if left < 0 {
		left = 0
	}
	c.remaining[c.running] = left
	c.running = ""
	c.lastEvent = now
}

func clampMs(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Milliseconds()
}
