package shared

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate reads a calendar date. Timestamps are accepted and reduced to
// their date in the offset they were written in. Blank input yields the
// zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(DateLayout, value)
}
