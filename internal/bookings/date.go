package bookings

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// NormalizeDate drops the clock and zone of t and anchors the calendar date it
// shows at UTC midnight. The wall date is kept as written: 2025-06-15T23:30-05:00
// stays 2025-06-15.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or a timestamp with or without a zone suffix
// and returns the normalized calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "eventDate", Reason: "is required"}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeDate(t), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "eventDate", Reason: "must be YYYY-MM-DD"}
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
