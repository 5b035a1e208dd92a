/*
Package clock injects the current time so certification preconditions
and the expire-sweep (spec.md §4.5, §4.6) are testable without
wall-clock dependence.

Grounded on generic.Today(): the teacher reads time.Now() directly from
a free function; this is generalized to an interface so tests can pin
"today" to a fixed date.
*/
package clock

import (
	"time"

	"github.com/cocrecords/coc-engine/coc"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// System is the production Clock, backed by time.Now().
type System struct {
	Location *time.Location
}

func NewSystem(loc *time.Location) System { return System{Location: loc} }

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Today returns the current civil date in the clock's configured zone
// (spec.md §1 Non-goals: all times are in a single configured zone).
// loc may be nil, in which case the instant's own zone is used as-is.
func Today(c Clock, loc *time.Location) coc.Date {
	now := c.Now()
	if loc != nil {
		now = now.In(loc)
	}
	return coc.DateFromTime(now)
}

// Fixed is a Clock that always returns the same instant; used in tests.
type Fixed struct {
	At time.Time
}

func NewFixed(at time.Time) Fixed { return Fixed{At: at} }

func (f Fixed) Now() time.Time { return f.At }
