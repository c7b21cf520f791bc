// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements posting.Clock. Times are UTC with the monotonic reading
// stripped, so values survive store round trips and compare with Equal.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time at microsecond precision, matching what
// postgres timestamptz keeps.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond).Round(0)
}
