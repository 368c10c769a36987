// Package system provides the wall clock used for cache expiry and health uptime.
package system

import "time"

// Clock implements content.Clock and cache.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the time elapsed since t according to the clock.
func (c Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
