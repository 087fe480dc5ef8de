package catalog

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ISO-8601 layouts accepted for instants. Layouts without a zone are read
// as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

// ParseTimestamp parses an ISO-8601 instant. The second result is false when
// s is not a recognizable instant.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseDate accepts a calendar date or a full instant, of which only the
// date part is kept.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, strings.TrimSpace(s)); err == nil {
		return t, nil
	}
	if t, ok := ParseTimestamp(s); ok {
		return truncateDate(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
