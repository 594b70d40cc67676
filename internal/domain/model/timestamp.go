package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// timestampLayouts are tried in order for string stamps. Layouts without a
// zone are read as UTC.
var timestampLayouts = []string{ //nolint:gochecknoglobals // fixed layout table
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a backend time value. It keeps the raw JSON so it can be
// served back unchanged, and parses it best-effort into Time. A value that
// does not parse leaves Time zero; it never fails decoding.
type Timestamp struct {
	time.Time
	Raw json.RawMessage
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON accepts strings in any of the known layouts and numbers as
// Unix seconds, or milliseconds when too large to be seconds.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	ts.Raw = append(json.RawMessage(nil), data...)

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		ts.Time = parseStamp(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		ts.Time = unixStamp(n)
	}
	return nil
}

// MarshalJSON writes the raw value when there is one, otherwise Time in
// RFC 3339, or null for the zero time.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if len(ts.Raw) > 0 {
		return ts.Raw, nil
	}
	if ts.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time)
}

func parseStamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return unixStamp(n)
	}
	return time.Time{}
}

// unixStamp treats values above 1e12 as milliseconds.
func unixStamp(n float64) time.Time {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return time.Time{}
	}
	if n > 1e12 {
		n /= 1000
	}
	if n > float64(math.MaxInt64/int64(time.Second)) {
		return time.Time{}
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
