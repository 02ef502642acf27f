package utils

import "time"

// DateKey returns the wall-clock date of t in UTC, formatted as YYYY-MM-DD.
// The daily-loss circuit breaker is scoped by this key.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
