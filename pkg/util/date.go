package util

import (
	"strconv"
	"time"
)

// ParseTime accepts RFC3339(Nano), unix seconds or unix milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignToFrame returns the start of the frame-minute bucket holding t.
// A non-positive frame aligns to the minute.
func AlignToFrame(t time.Time, frameMinutes int) time.Time {
	if frameMinutes <= 0 {
		frameMinutes = 1
	}
	return t.Truncate(time.Duration(frameMinutes) * time.Minute)
}
