package pipeline

import "time"

// Clock measures time since the start of a recording using the monotonic
// reading inside time.Time, so wall-clock adjustments cannot skew pacing or
// the max-duration bound.
type Clock struct {
	start time.Time
	now   func() time.Time
}

// NewClock starts a clock at the current instant.
func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc starts a clock reading time from now. Tests substitute a
// stepped fake.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{start: now(), now: now}
}

// Elapsed returns the duration since the clock was created.
func (c *Clock) Elapsed() time.Duration {
	return c.now().Sub(c.start)
}

// ShouldStop reports whether a configured maximum recording duration has
// been exceeded. A zero max means unbounded recording.
func ShouldStop(elapsed, max time.Duration) bool {
	return max > 0 && elapsed > max
}

// Pace returns how long the loop should sleep so iterations honor the
// target frame interval. A zero target disables pacing, and an iteration
// that overran the interval yields no sleep rather than any catch-up.
func Pace(iterDur, target time.Duration) time.Duration {
	if target <= 0 || iterDur >= target {
		return 0
	}
	return target - iterDur
}
