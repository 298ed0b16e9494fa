package bizdays

import (
	"fmt"
	"time"
)

// DefaultReviewDays is the length of the architect review window.
const DefaultReviewDays = 3

// MaxDays bounds the n accepted by AddBusinessDays callers, and MaxSpanYears
// the width of a range handed to CountBusinessDays. Both are checked by
// CheckDays and CheckSpan.
const (
	MaxDays      = 3650
	MaxSpanYears = 100
)

// CheckDays returns an error when n is outside [0, MaxDays].
func CheckDays(n int) error {
	if n < 0 {
		return fmt.Errorf("days must not be negative")
	}
	if n > MaxDays {
		return fmt.Errorf("days must be at most %d", MaxDays)
	}
	return nil
}

// CheckSpan returns an error when start and end are more than MaxSpanYears apart.
func CheckSpan(start, end time.Time) error {
	if start.After(end) {
		start, end = end, start
	}
	if end.After(start.AddDate(MaxSpanYears, 0, 0)) {
		return fmt.Errorf("date range must not exceed %d years", MaxSpanYears)
	}
	return nil
}

// IsBusinessDay reports whether t's date is neither a weekend nor a holiday.
func (c Calendar) IsBusinessDay(t time.Time) bool {
	return c.walker().isBusinessDay(t)
}

// walker memoizes the holiday set per year for a single walk over dates.
type walker struct {
	cal   Calendar
	years map[int]map[string]string
}

func (c Calendar) walker() *walker {
	return &walker{cal: c, years: map[int]map[string]string{}}
}

func (w *walker) isBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	days, ok := w.years[t.Year()]
	if !ok {
		days = w.cal.HolidaysForYear(t.Year())
		w.years[t.Year()] = days
	}
	_, holiday := days[DateKey(t)]
	return !holiday
}

// AddBusinessDays walks forward from start one calendar day at a time and
// returns the date on which the nth business day after start lands. The start
// date itself is never counted. The time of day is preserved.
func (c Calendar) AddBusinessDays(start time.Time, n int) time.Time {
	w := c.walker()
	cur := start
	for added := 0; added < n; {
		cur = cur.AddDate(0, 0, 1)
		if w.isBusinessDay(cur) {
			added++
		}
	}
	return cur
}

// CountBusinessDays counts the business days strictly after start's date up
// to and including end's date. It returns 0 when end is not after start.
func (c Calendar) CountBusinessDays(start, end time.Time) int {
	w := c.walker()
	cur := dateOf(start)
	last := dateOf(end)
	n := 0
	for cur.Before(last) {
		cur = cur.AddDate(0, 0, 1)
		if w.isBusinessDay(cur) {
			n++
		}
	}
	return n
}

// ReviewDeadline returns the end of a review window of n business days that
// opened at sent.
func (c Calendar) ReviewDeadline(sent time.Time, n int) time.Time {
	return c.AddBusinessDays(sent, n)
}

// HasReviewPeriodPassed reports whether the review window opened at sent has
// elapsed as of now. Now is taken at end of day, so the window counts as
// passed for the whole of the deadline's date.
func (c Calendar) HasReviewPeriodPassed(sent, now time.Time, n int) bool {
	deadline := c.ReviewDeadline(sent, n)
	return !endOfDay(now).Before(deadline)
}

// FormatDeadline renders a deadline for humans, e.g. "Monday, January 5, 2026".
func FormatDeadline(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
