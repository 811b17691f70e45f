package model

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Timestamp is an instant persisted as an ISO-8601 string in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to UTC and wraps it.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// ParseTimestamp accepts RFC 3339 (with "Z" or a numeric offset) and plain dates.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t.UTC()}, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		// Naive timestamps are treated as UTC.
		return Timestamp{Time: t}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return Timestamp{Time: t}, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface for Timestamp.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		ts.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Timestamp.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.Time.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// String formats the timestamp the same way it is persisted.
func (ts Timestamp) String() string {
	return ts.Time.UTC().Format(time.RFC3339Nano)
}

// IsSet reports whether ts is non-nil and not the zero instant.
func (ts *Timestamp) IsSet() bool {
	return ts != nil && !ts.Time.IsZero()
}

func (ts *Timestamp) clone() *Timestamp {
	if ts == nil {
		return nil
	}
	c := *ts
	return &c
}
