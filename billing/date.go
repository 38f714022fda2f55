/*
date.go - Calendar date and canonical weekday types

PURPOSE:
  The engine works in whole calendar days: an hour entry belongs to a date,
  not an instant. Date wraps a UTC-midnight time.Time so that the rest of
  the codebase never touches hours/minutes/timezones.

KEY CONCEPTS IN THIS FILE:
  - Date: a YYYY-MM-DD calendar date with no time component
  - Weekday: the canonical weekday index, Monday=0 .. Sunday=6

WEEKDAY NUMBERING:
  Go's time.Weekday counts Sunday as 0. Every weekly computation in this
  system (filters, averages, Monday-based week boundaries) uses Monday=0.
  The conversion between the two conventions happens in exactly one place,
  Date.Weekday() - nowhere else in the repository is allowed to reinterpret
  time.Weekday directly. Mixing the two conventions is the classic
  off-by-one bug in calendar code.

SEE ALSO:
  - calendar.go: Range expansion and weekday-name parsing
  - trends.go: Monday-based week boundaries
*/
package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// WEEKDAY - Canonical index, Monday=0 .. Sunday=6
// =============================================================================

type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

// =============================================================================
// DATE - Calendar date without time component
// =============================================================================

// DateFormat is the wire format for dates everywhere in the engine.
const DateFormat = "2006-01-02"

// Date is a calendar date. The zero value is "no date".
// Internally normalized to UTC midnight, so == comparison is safe.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Anything else, including dates with
// a time component, is rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, &InvalidRangeError{Reason: fmt.Sprintf("invalid date %q: want YYYY-MM-DD", s)}
	}
	return Date{t: t.UTC()}, nil
}

// MustDate is ParseDate for tests and literals; panics on malformed input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates an instant to its calendar date (in the instant's location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar date.
func Today() Date { return DateOf(time.Now()) }

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) IsZero() bool                  { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) Time() time.Time   { return d.t }

// Weekday returns the canonical weekday index (Monday=0 .. Sunday=6).
// This is the single conversion point from Go's Sunday=0 convention.
func (d Date) Weekday() Weekday {
	return Weekday((int(d.t.Weekday()) + 6) % 7)
}

// StartOfWeek returns the Monday of the week containing d.
func (d Date) StartOfWeek() Date {
	return d.AddDays(-int(d.Weekday()))
}

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date {
	return d.StartOfMonth().AddMonths(1).AddDays(-1)
}

func (d Date) String() string {
	return d.t.Format(DateFormat)
}

// JSON round-trips as a plain "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &InvalidRangeError{Reason: fmt.Sprintf("invalid date %s: want a JSON string", s)}
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// YEAR-MONTH - Identifies a billing month (for average exclusion)
// =============================================================================

type YearMonth struct {
	Year  int
	Month time.Month
}

func MonthOf(d Date) YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
