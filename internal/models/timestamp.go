package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire format for instants: ISO-8601 UTC with microseconds.
const TimeLayout = "2006-01-02T15:04:05.000000"

// Timestamp wraps time.Time so that JSON and database round-trips use
// TimeLayout consistently. All values are normalized to UTC.
type Timestamp struct {
	time.Time
}

// Now returns the current UTC instant as a Timestamp.
func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

// NewTimestamp converts a time.Time to a Timestamp in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(TimeLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	// Accept our canonical layout first, then RFC3339 variants emitted by
	// detectors and other producers.
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp: %q", s)
}

// Value implements driver.Valuer for database writes.
func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC(), nil
}

// Scan implements sql.Scanner for database reads.
func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parseString(string(v))
	case string:
		return t.parseString(v)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (t *Timestamp) parseString(s string) error {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999-07:00", "2006-01-02 15:04:05.999999"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp: %q", s)
}
