package sim

import (
	"time"

	"github.com/milk9111/boxfall/physics"
)

// DefaultResetDelay is how long the scene may stay idle before it is reset.
const DefaultResetDelay = time.Second

// IdleDetector decides when a scene has become boring. While watching, the
// first inactive body arms a deadline. Once armed, the detector fires when
// the deadline passes, or disarms if every body has woken up again.
type IdleDetector struct {
	Delay time.Duration

	armed    bool
	deadline time.Time
}

// Reset returns the detector to watching.
func (d *IdleDetector) Reset() {
	d.armed = false
	d.deadline = time.Time{}
}

// Armed reports whether a reset countdown is running.
func (d IdleDetector) Armed() bool {
	return d.armed
}

// Deadline returns the pending reset time, if armed.
func (d IdleDetector) Deadline() (time.Time, bool) {
	return d.deadline, d.armed
}

// Check advances the state machine and reports whether the scene should be
// reset now. bodies must not include the ground.
func (d *IdleDetector) Check(now time.Time, bodies []physics.Body) bool {
	if d.armed {
		if !now.Before(d.deadline) {
			d.Reset()
			return true
		}
		if firstIdle(bodies) < 0 {
			d.Reset()
		}
		return false
	}

	if firstIdle(bodies) >= 0 {
		delay := d.Delay
		if delay <= 0 {
			delay = DefaultResetDelay
		}
		d.armed = true
		d.deadline = now.Add(delay)
	}
	return false
}

func firstIdle(bodies []physics.Body) int {
	for i, b := range bodies {
		if !b.IsActive() {
			return i
		}
	}
	return -1
}
