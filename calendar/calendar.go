/*
Package calendar implements the Calendar Service (spec.md §4.1, C1):
classifying a date as Weekday, Weekend, or Holiday.

Grounded on generic/time.go's HolidayCalendar interface and
IsWorkdayWithHolidays, generalized to the spec's Holiday-first test
order: a holiday falling on a weekend is classified Holiday, not
Weekend (spec.md §9 "Observed source ambiguities" pins this choice).
*/
package calendar

import (
	"time"

	"github.com/cocrecords/coc-engine/coc"
)

// HolidaySet is the pre-fetched per-year holiday lookup the validation
// cascade builds once per request (spec.md §4.3 step 5) rather than
// querying per entry.
type HolidaySet map[coc.Date]coc.Holiday

// Service classifies dates using a configured weekend-day set and a
// holiday registry. It holds no store reference: callers pre-fetch the
// holiday set and weekend days once per request (spec.md §5 Caching).
type Service struct {
	weekendDays map[int]bool // 0=Sunday..6=Saturday
	location    *time.Location
}

func New(weekendDays []int, location *time.Location) *Service {
	set := make(map[int]bool, len(weekendDays))
	for _, d := range weekendDays {
		set[d] = true
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{weekendDays: set, location: location}
}

// WeekendDays returns the configured set of 0..6 weekday indices.
func (s *Service) WeekendDays() []int {
	out := make([]int, 0, len(s.weekendDays))
	for d := range s.weekendDays {
		out = append(out, d)
	}
	return out
}

// SetWeekendDays replaces the configured weekend-day set.
func (s *Service) SetWeekendDays(days []int) {
	set := make(map[int]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	s.weekendDays = set
}

// IsWeekend reports whether date's civil weekday is in the configured
// weekend set.
func (s *Service) IsWeekend(date coc.Date) bool {
	return s.weekendDays[int(date.Weekday(s.location))]
}

// IsHoliday reports whether date is present in the holiday set.
func (s *Service) IsHoliday(date coc.Date, holidays HolidaySet) bool {
	_, ok := holidays[date]
	return ok
}

// DayType classifies date, testing holiday first: a holiday that falls
// on a configured weekend day is still Holiday, never Weekend
// (spec.md §4.1 — test order matters and is observable in §4.2 rates).
func (s *Service) DayType(date coc.Date, holidays HolidaySet) coc.DayType {
	if s.IsHoliday(date, holidays) {
		return coc.Holiday
	}
	if s.IsWeekend(date) {
		return coc.Weekend
	}
	return coc.Weekday
}

// BuildHolidaySet indexes a year's holidays by date for O(1) per-entry
// classification (spec.md §4.3 step 5 pre-fetch).
func BuildHolidaySet(holidays []coc.Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.Date] = h
	}
	return set
}
