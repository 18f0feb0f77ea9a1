package clock

import "time"

// Clock provides the current time so hold expiry can be driven from tests
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time in UTC at millisecond precision, which is
// what the SQLite store keeps. Expiries compared in memory then agree with
// the ones read back from any backend.
func (c *RealClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
