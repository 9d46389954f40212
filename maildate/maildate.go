// Package maildate normalizes the timestamps stored in the Envelope Index.
//
// Depending on the Mail version a date column holds Unix seconds, Unix
// milliseconds or seconds since 2001-01-01 (the Cocoa reference date).
package maildate

import (
	"math"
	"time"
)

const (
	// MacEpochOffset is the number of seconds between 1970-01-01 and 2001-01-01 UTC.
	MacEpochOffset = 978_307_200

	// Values above this are milliseconds.
	millisThreshold = 1_000_000_000_000
	// Values below this (after scaling) are relative to the Mac epoch.
	unixThreshold = 1_000_000_000

	Layout    = "2006-01-02 15:04:05"
	DayLayout = "2006-01-02"

	Unknown = "unknown"
)

// Time converts a raw index value into a UTC time. Zero, NaN and infinite
// values report false.
func Time(raw float64) (time.Time, bool) {
	if raw == 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return time.Time{}, false
	}

	ts := raw
	if ts > millisThreshold {
		ts /= 1000
	}
	if ts < unixThreshold {
		ts += MacEpochOffset
	}

	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// Normalize formats a raw index value as "2006-01-02 15:04:05" UTC, or
// "unknown".
func Normalize(raw float64) string {
	t, ok := Time(raw)
	if !ok {
		return Unknown
	}
	return t.Format(Layout)
}

// Day is the date-only form of Normalize.
func Day(raw float64) string {
	t, ok := Time(raw)
	if !ok {
		return Unknown
	}
	return t.Format(DayLayout)
}
