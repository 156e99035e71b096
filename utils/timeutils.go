package utils

import (
	"time"
)

// Iso8601FromUnixSeconds converts Unix timestamp to ISO8601 format
func Iso8601FromUnixSeconds(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// Iso8601FromUnixMillis converts a Unix millisecond timestamp to ISO8601 with
// millisecond precision
func Iso8601FromUnixMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ValidUntilFrom returns base plus validFor in ISO8601 format, or "" when
// validFor is not positive
func ValidUntilFrom(base time.Time, validFor time.Duration) string {
	if validFor <= 0 {
		return ""
	}
	return base.Add(validFor).UTC().Format(time.RFC3339)
}
