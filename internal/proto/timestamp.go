package proto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// UnknownTime is rendered for timestamps that could not be parsed.
const UnknownTime = "unknown time"

// Timestamp decodes RFC3339 strings or unix milliseconds.
// Anything else decodes to the zero time instead of failing the frame.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	ts.Time = time.Time{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ts.Time = t
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			ts.Time = time.UnixMilli(ms)
		}
		return nil
	}

	if ms, err := strconv.ParseFloat(string(data), 64); err == nil && ms > 0 {
		ts.Time = time.UnixMilli(int64(ms))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// Display renders the local time with layout, or UnknownTime for the zero value.
func (ts Timestamp) Display(layout string) string {
	if ts.IsZero() {
		return UnknownTime
	}
	return ts.Time.Local().Format(layout)
}
