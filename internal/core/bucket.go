package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the canonical calendar-day layout.
const DateFormat = "2006-01-02"

// MonthKey identifies a calendar month bucket.
type MonthKey struct {
	Year  int
	Month int // 1-12
}

// ParseDay converts a date-bearing string into a UTC calendar day.
//
// Plain dates (2025-01-10, also 2025-1-10) are split into their numeric
// components and built directly in UTC, so no local zone can shift them.
// RFC 3339 timestamps are reduced to the calendar day of their UTC instant.
func ParseDay(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if d, ok := parsePlainDay(s); ok {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DayOf(t), nil
	}
	// Zone-less timestamp: the date part is taken literally.
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		if d, ok := parsePlainDay(s[:10]); ok {
			return d, nil
		}
	}
	return Date{}, fmt.Errorf("%w %q want format %q", ErrInvalidDate, s, DateFormat)
}

// MustParseDay is like ParseDay but panics on error.
func MustParseDay(s string) Date {
	d, err := ParseDay(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func parsePlainDay(s string) (Date, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return Date{}, false
	}
	var n [3]int
	for i, p := range parts {
		if p == "" || (i > 0 && len(p) > 2) || !allDigits(p) {
			return Date{}, false
		}
		n[i], _ = strconv.Atoi(p)
	}
	year, month, day := n[0], n[1], n[2]
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, month) {
		return Date{}, false
	}
	return NewDate(year, month, day), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// MonthOf returns the month bucket of a day.
func MonthOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

// MonthOfTime returns the month bucket of an instant, in UTC.
func MonthOfTime(t time.Time) MonthKey {
	return MonthOf(DayOf(t))
}

// Start returns the first day of the month at midnight UTC.
func (k MonthKey) Start() time.Time {
	return time.Date(k.Year, time.Month(k.Month), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the bucket n months away (n may be negative).
func (k MonthKey) AddMonths(n int) MonthKey {
	t := time.Date(k.Year, time.Month(k.Month)+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return MonthKey{Year: t.Year(), Month: int(t.Month())}
}

// Prev returns the preceding calendar month.
func (k MonthKey) Prev() MonthKey {
	return k.AddMonths(-1)
}

// Before reports whether k is chronologically earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	return k.Start().Before(o.Start())
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}
