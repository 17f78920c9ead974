package shared

import "time"

// ParseDate accepts either a full RFC3339 timestamp or a bare YYYY-MM-DD
// date, the two shapes API clients send. Empty input parses to the zero
// time so optional query parameters need no special casing upstream.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
