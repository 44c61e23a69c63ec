// Package calendar implements the working-day arithmetic the CPM kernel
// schedules against: which days are working days, and how to add, subtract,
// and count working days between two dates.
package calendar

import (
	"fmt"
	"time"

	"github.com/buildwright/cpmschedule/internal/schederr"
)

// maxScanDays bounds how far AddWorkDays/NextWorkingDay will scan looking for
// a working day before giving up with CalendarExhausted.
const maxScanDays = 10000

// Exception overrides the weekday default for a single calendar date.
type Exception struct {
	Working bool
	Name    string
}

// Calendar is a working-day calendar: a set of working weekdays plus a table
// of date exceptions (holidays, forced workdays) that override the weekday
// default.
type Calendar struct {
	WorkingDays map[time.Weekday]bool
	Exceptions  map[string]Exception // keyed by "2006-01-02"
}

// New builds a Calendar from the given working weekdays. It returns
// ConfigError if no weekday is marked working; it applies no default set
// (NewStandard gives Monday to Friday).
func New(workingDays map[time.Weekday]bool) (*Calendar, error) {
	c := &Calendar{
		WorkingDays: make(map[time.Weekday]bool, len(workingDays)),
		Exceptions:  make(map[string]Exception),
	}
	for wd, ok := range workingDays {
		if ok {
			c.WorkingDays[wd] = true
		}
	}
	if len(c.WorkingDays) == 0 {
		return nil, schederr.NewConfigError("workingDays", "calendar must have at least one working weekday", nil)
	}
	return c, nil
}

// NewStandard returns a calendar with Monday-Friday as working days and no
// exceptions, the default most construction schedules start from.
func NewStandard() *Calendar {
	c, _ := New(map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	})
	return c
}

func dateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

func truncate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// AddException records a date exception (holiday or forced workday),
// overriding the weekday default for that single date.
func (c *Calendar) AddException(d time.Time, working bool, name string) {
	c.Exceptions[dateKey(truncate(d))] = Exception{Working: working, Name: name}
}

// IsWorkingDay reports whether d is a working day: an exception takes
// precedence, otherwise the weekday default applies.
func (c *Calendar) IsWorkingDay(d time.Time) bool {
	d = truncate(d)
	if ex, ok := c.Exceptions[dateKey(d)]; ok {
		return ex.Working
	}
	return c.WorkingDays[d.Weekday()]
}

// NextWorkingDay rolls d forward to the nearest working day, returning d
// itself if it is already a working day.
func (c *Calendar) NextWorkingDay(d time.Time) (time.Time, error) {
	d = truncate(d)
	for i := 0; i <= maxScanDays; i++ {
		if c.IsWorkingDay(d) {
			return d, nil
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Time{}, schederr.NewCalendarExhausted(dateKey(truncate(d)), maxScanDays)
}

// PrevWorkingDay rolls d backward to the nearest working day, returning d
// itself if it is already a working day.
func (c *Calendar) PrevWorkingDay(d time.Time) (time.Time, error) {
	d = truncate(d)
	for i := 0; i <= maxScanDays; i++ {
		if c.IsWorkingDay(d) {
			return d, nil
		}
		d = d.AddDate(0, 0, -1)
	}
	return time.Time{}, schederr.NewCalendarExhausted(dateKey(truncate(d)), maxScanDays)
}

// AddWorkDays advances d by n working days.
//
// If n == 0, it rolls d forward to the next working day when d itself is
// non-working (and returns d unchanged when it already is one). If n > 0 it
// counts n working days forward from d; if n < 0 it counts |n| working days
// backward from d. Durations are inclusive of both endpoints elsewhere in
// the kernel, so callers computing a finish date pass duration-1.
func (c *Calendar) AddWorkDays(d time.Time, n int) (time.Time, error) {
	d = truncate(d)

	if n == 0 {
		return c.NextWorkingDay(d)
	}

	if n > 0 {
		cur := d
		remaining := n
		for i := 0; i < maxScanDays; i++ {
			cur = cur.AddDate(0, 0, 1)
			if c.IsWorkingDay(cur) {
				remaining--
				if remaining == 0 {
					return cur, nil
				}
			}
		}
		return time.Time{}, schederr.NewCalendarExhausted(dateKey(d), maxScanDays)
	}

	cur := d
	remaining := -n
	for i := 0; i < maxScanDays; i++ {
		cur = cur.AddDate(0, 0, -1)
		if c.IsWorkingDay(cur) {
			remaining--
			if remaining == 0 {
				return cur, nil
			}
		}
	}
	return time.Time{}, schederr.NewCalendarExhausted(dateKey(d), maxScanDays)
}

// SubWorkDays is AddWorkDays(d, -n).
func (c *Calendar) SubWorkDays(d time.Time, n int) (time.Time, error) {
	return c.AddWorkDays(d, -n)
}

// WorkDaysBetween counts the working days in the half-open interval
// [min(a,b), max(a,b)), signed positive when a <= b and negative otherwise.
func (c *Calendar) WorkDaysBetween(a, b time.Time) int {
	a, b = truncate(a), truncate(b)

	sign := 1
	lo, hi := a, b
	if b.Before(a) {
		sign = -1
		lo, hi = b, a
	}

	count := 0
	for cur := lo; cur.Before(hi); cur = cur.AddDate(0, 0, 1) {
		if c.IsWorkingDay(cur) {
			count++
		}
	}
	return sign * count
}

// String renders the calendar for diagnostics.
func (c *Calendar) String() string {
	return fmt.Sprintf("Calendar{workingDays=%d exceptions=%d}", len(c.WorkingDays), len(c.Exceptions))
}
