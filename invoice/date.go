package invoice

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout renders dates as "January 15, 2024".
const DateLayout = "January 2, 2006"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// DateFormatter renders timestamps in a single fixed profile.
type DateFormatter struct {
	Location *time.Location
}

// FormatDate renders a timestamp string with the UTC profile.
func FormatDate(ts string) (string, error) {
	return DateFormatter{}.Format(ts)
}

// Format parses ts and renders it with DateLayout.
func (f DateFormatter) Format(ts string) (string, error) {
	parsed, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	return parsed.In(f.location()).Format(DateLayout), nil
}

func (f DateFormatter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// ParseTimestamp accepts RFC 3339 timestamps, zone-less timestamps and plain
// dates. Zone-less values are read as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	trimmed := strings.TrimSpace(ts)
	if trimmed == "" {
		return time.Time{}, NewError(KindParse, "timestamp is empty", nil)
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, time.UTC)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, NewError(KindParse, fmt.Sprintf("invalid timestamp %q", ts), lastErr)
}
