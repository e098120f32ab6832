package utils

import (
	"log"
	"time"
)

// Ledger exports carry second-precision timestamps in this layout.
const DefaultDateFormat = "2006-01-02 15:04:05"

// DayFormat is used wherever only the calendar date matters (report
// columns, holding-period maths).
const DayFormat = "2006-01-02"

// ParseDate parses a date string using the default format.
// Logs an error and returns zero time if parsing fails.
func ParseDate(dateStr string) time.Time {
	t, err := time.Parse(DefaultDateFormat, dateStr)
	if err != nil {
		log.Printf("Error parsing date '%s' with format '%s': %v. Returning zero time.", dateStr, DefaultDateFormat, err)
		return time.Time{}
	}
	return t
}

// DaysBetween returns whole days from a to b, truncating partial days.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
