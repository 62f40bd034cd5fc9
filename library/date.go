package library

import (
	"fmt"
	"time"
)

// Date is a civil calendar date with no time-of-day component. The zero
// value means "no date" (e.g. a loan that has not been returned yet).
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
	Day   int `json:"day"`   // 1-31
}

// DateFromTime truncates t to its UTC calendar date.
func DateFromTime(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// Today returns the current UTC date.
func Today() Date {
	return DateFromTime(time.Now())
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n calendar days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateFromTime(d.Time().AddDate(0, 0, n))
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String renders the date as YYYY-MM-DD. The zero date renders empty, so
// it round-trips through the CSV files as a blank field.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseDate parses a YYYY-MM-DD string. An empty string parses to the
// zero date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidArgument)
	}
	return DateFromTime(t), nil
}

// DaysBetween returns the number of calendar days from a to b (b - a).
// Negative when b precedes a.
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()) / (24 * time.Hour))
}
