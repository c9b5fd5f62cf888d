// Package system provides a real clock implementation.
package system

import "time"

// Clock reports wall-clock time; the cache uses it for TTL bookkeeping.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
