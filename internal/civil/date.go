// Package civil provides a timezone-free calendar date. All scheduling in
// spotshare happens at day granularity; callers normalize wall-clock times
// to a Date before anything touches the core.
package civil

import (
	"fmt"
	"time"
)

// Date is a calendar day without time-of-day or location. The zero value is
// not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const layout = "2006-01-02"

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse reads a date in YYYY-MM-DD form.
func Parse(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParse is Parse for test fixtures and constants; it panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return d.toTime().Format(layout)
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// AddDays returns the date n days after d; n may be negative.
func (d Date) AddDays(n int) Date {
	return DateOf(d.toTime().AddDate(0, 0, n))
}

// DaysUntil returns the signed number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.toTime().Sub(d.toTime()) / (24 * time.Hour))
}

// MarshalText implements encoding.TextMarshaler using YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock supplies "today" so date-sensitive code can be tested with a fixed
// calendar position.
type Clock interface {
	Today() Date
}

// RealClock reads the system clock in local time.
type RealClock struct{}

func (RealClock) Today() Date { return DateOf(time.Now()) }
