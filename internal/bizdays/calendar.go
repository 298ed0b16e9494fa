package bizdays

import (
	"fmt"
	"time"
)

// DateKeyLayout is the layout of holiday date keys.
const DateKeyLayout = "2006-01-02"

// FixedHoliday falls on the same month and day every year. When it lands on a
// weekend it is also observed on the nearest weekday.
type FixedHoliday struct {
	Name  string
	Month time.Month
	Day   int
}

// FloatingHoliday falls on the Nth weekday of a month. Nth = -1 means the last
// such weekday.
type FloatingHoliday struct {
	Name    string
	Month   time.Month
	Weekday time.Weekday
	Nth     int
}

// Closure is an inclusive range of closed days within one month. Closures
// are never shifted for weekends.
type Closure struct {
	Name    string
	Month   time.Month
	FromDay int
	ToDay   int
}

// RelativeClosure is a closed day offset from a floating holiday, e.g. the
// day after Thanksgiving.
type RelativeClosure struct {
	Name   string
	Anchor FloatingHoliday
	Offset int
}

// Calendar is a declarative holiday rule table.
type Calendar struct {
	Fixed    []FixedHoliday
	Floating []FloatingHoliday
	Closures []Closure
	Relative []RelativeClosure
}

var thanksgiving = FloatingHoliday{Name: "Thanksgiving Day", Month: time.November, Weekday: time.Thursday, Nth: 4}

// USFederal returns the US federal holiday rules.
func USFederal() Calendar {
	return Calendar{
		Fixed: []FixedHoliday{
			{Name: "New Year's Day", Month: time.January, Day: 1},
			{Name: "Juneteenth", Month: time.June, Day: 19},
			{Name: "Independence Day", Month: time.July, Day: 4},
			{Name: "Veterans Day", Month: time.November, Day: 11},
			{Name: "Christmas Day", Month: time.December, Day: 25},
		},
		Floating: []FloatingHoliday{
			{Name: "Martin Luther King Jr. Day", Month: time.January, Weekday: time.Monday, Nth: 3},
			{Name: "Presidents' Day", Month: time.February, Weekday: time.Monday, Nth: 3},
			{Name: "Memorial Day", Month: time.May, Weekday: time.Monday, Nth: -1},
			{Name: "Labor Day", Month: time.September, Weekday: time.Monday, Nth: 1},
			{Name: "Columbus Day", Month: time.October, Weekday: time.Monday, Nth: 2},
			thanksgiving,
		},
	}
}

// CompanyClosures returns the organization-specific closed days.
func CompanyClosures() Calendar {
	return Calendar{
		Closures: []Closure{
			{Name: "Christmas Eve", Month: time.December, FromDay: 24, ToDay: 24},
			{Name: "Year-end closure", Month: time.December, FromDay: 26, ToDay: 31},
		},
		Relative: []RelativeClosure{
			{Name: "Day after Thanksgiving", Anchor: thanksgiving, Offset: 1},
		},
	}
}

// Default returns the calendar used for review deadlines: US federal
// holidays plus company closures.
func Default() Calendar {
	return USFederal().Merge(CompanyClosures())
}

// Merge returns a calendar containing the rules of both c and o.
func (c Calendar) Merge(o Calendar) Calendar {
	return Calendar{
		Fixed:    append(append([]FixedHoliday{}, c.Fixed...), o.Fixed...),
		Floating: append(append([]FloatingHoliday{}, c.Floating...), o.Floating...),
		Closures: append(append([]Closure{}, c.Closures...), o.Closures...),
		Relative: append(append([]RelativeClosure{}, c.Relative...), o.Relative...),
	}
}

// DateKey formats t's calendar date as a holiday key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// nthWeekday returns the date of the nth weekday of month, or the last one
// when nth is -1.
func nthWeekday(year int, month time.Month, wd time.Weekday, nth int) time.Time {
	if nth < 0 {
		last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		back := (int(last.Weekday()) - int(wd) + 7) % 7
		return last.AddDate(0, 0, -back)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	ahead := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, ahead+7*(nth-1))
}

// observed returns the weekday a fixed holiday is observed on when it falls
// on a weekend, and false when it falls on a weekday.
func observed(d time.Time) (time.Time, bool) {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1), true
	case time.Sunday:
		return d.AddDate(0, 0, 1), true
	}
	return time.Time{}, false
}

// HolidaysForYear materializes every closed date in year, keyed by date key
// with the holiday name as value. Observed dates that cross into year from a
// neighbouring year's rules are included.
func (c Calendar) HolidaysForYear(year int) map[string]string {
	days := map[string]string{}
	add := func(d time.Time, name string) {
		if d.Year() != year {
			return
		}
		key := DateKey(d)
		if _, ok := days[key]; !ok {
			days[key] = name
		}
	}

	for _, y := range []int{year - 1, year, year + 1} {
		for _, h := range c.Fixed {
			d := time.Date(y, h.Month, h.Day, 0, 0, 0, 0, time.UTC)
			add(d, h.Name)
			if obs, ok := observed(d); ok {
				add(obs, fmt.Sprintf("%s (observed)", h.Name))
			}
		}
	}

	for _, h := range c.Floating {
		add(nthWeekday(year, h.Month, h.Weekday, h.Nth), h.Name)
	}

	for _, cl := range c.Closures {
		for day := cl.FromDay; day <= cl.ToDay; day++ {
			add(time.Date(year, cl.Month, day, 0, 0, 0, 0, time.UTC), cl.Name)
		}
	}

	for _, r := range c.Relative {
		anchor := nthWeekday(year, r.Anchor.Month, r.Anchor.Weekday, r.Anchor.Nth)
		add(anchor.AddDate(0, 0, r.Offset), r.Name)
	}

	return days
}

// HolidayName returns the name of the holiday on t's date, if any.
func (c Calendar) HolidayName(t time.Time) (string, bool) {
	name, ok := c.HolidaysForYear(t.Year())[DateKey(t)]
	return name, ok
}
