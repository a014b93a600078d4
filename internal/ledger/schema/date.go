package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date without a time component or a timezone.
//
// It is stored and exchanged as a zero-padded "YYYY-MM-DD" string. Parsing
// always goes through the numeric components rather than time.Parse, so a
// date entered on one device never shifts by a day when read on another.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate constructs a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf reduces a time.Time to its calendar components in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a strict "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("invalid year in date %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("invalid month in date %q: %w", s, err)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return Date{}, fmt.Errorf("invalid day in date %q: %w", s, err)
	}

	d := Date{Year: year, Month: time.Month(month), Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Validate checks that the components form a real calendar date.
func (d Date) Validate() error {
	if d.Month < time.January || d.Month > time.December {
		return fmt.Errorf("invalid month %d in date %s", int(d.Month), d)
	}
	if d.Day < 1 || d.Day > 31 {
		return fmt.Errorf("invalid day %d in date %s", d.Day, d)
	}
	// time.Date normalizes overflow (Feb 30 -> Mar 2), so a changed day
	// means the components were not a real date.
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	if t.Day() != d.Day || t.Month() != d.Month || t.Year() != d.Year {
		return fmt.Errorf("nonexistent date %s", d)
	}
	return nil
}

// IsZero reports whether the date has not been set.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as zero-padded YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of the date in the given location. Callers that only
// need the calendar day should keep working with Date itself.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// MonthRange returns the half-open [from, to) string range covering every
// date in the given month. Because the serialized form is zero-padded,
// lexicographic comparison over this range is equivalent to date comparison.
func MonthRange(year int, month time.Month) (from, to string) {
	from = Date{Year: year, Month: month, Day: 1}.String()
	nextYear, nextMonth := year, month+1
	if nextMonth > time.December {
		nextYear, nextMonth = year+1, time.January
	}
	to = Date{Year: nextYear, Month: nextMonth, Day: 1}.String()
	return from, to
}
