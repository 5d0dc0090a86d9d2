package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NowMillis returns the current time as an epoch-millisecond string, the
// preferred machine-readable timestamp format for this protocol.
func NowMillis() string {
	return FormatMillis(time.Now().UTC())
}

// FormatMillis renders t as an epoch-millisecond string.
func FormatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// NowISO8601 returns the current time as a Z-suffixed ISO-8601 string, the
// preferred human-readable timestamp format for this protocol.
func NowISO8601() string {
	return FormatISO8601(time.Now().UTC())
}

// FormatISO8601 renders t as a Z-suffixed ISO-8601 string.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts either an epoch-millisecond string or an
// ISO-8601 (RFC3339) string, the two timestamp forms lease-expiry checks
// and other consumers must handle.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("protocol: empty timestamp")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("protocol: unrecognized timestamp %q", s)
}
