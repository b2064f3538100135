package utils

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date form used in query strings and day keys.
const DateLayout = "2006-01-02"

// StartOfDay returns local midnight of t in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DateKey returns the YYYY-MM-DD key of t in its own location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as local midnight in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ISOWeekday returns the weekday of t numbered Mon=1..Sun=7
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// CompareDays orders the calendar days of a and b: -1, 0 or 1.
func CompareDays(a, b time.Time) int {
	ka, kb := DateKey(a), DateKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

// FormatTimestamp formats t as an RFC3339 string
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
