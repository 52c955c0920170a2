package handlers

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// parseTimestamp accepts RFC3339 or a naive ISO-8601 timestamp. A '+' in an
// unescaped query string arrives as a space, so "…T14:00:00 02:00" is read as
// "…T14:00:00+02:00".
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if i := strings.LastIndexByte(s, ' '); i > 0 && strings.Contains(s[:i], "T") {
		if t, err := time.Parse(time.RFC3339Nano, s[:i]+"+"+s[i+1:]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q must be RFC3339 (2024-07-15T14:00:00Z) or 2006-01-02T15:04:05", s)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
