package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	TimeLayout,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts the formats created_at has been written in over
// time (ISO 8601 from the app, SQLite CURRENT_TIMESTAMP, Postgres text).
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp scans a created_at column whatever the driver hands back:
// time.Time from Postgres timestamptz, text from SQLite.
type Timestamp struct {
	Raw   string
	Time  time.Time
	Valid bool
}

func (ts *Timestamp) Scan(src any) error {
	*ts = Timestamp{}
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		ts.Time, ts.Valid = v, true
		ts.Raw = v.UTC().Format(TimeLayout)
	case string:
		ts.Raw = v
		ts.Time, ts.Valid = ParseTimestamp(v)
	case []byte:
		ts.Raw = string(v)
		ts.Time, ts.Valid = ParseTimestamp(ts.Raw)
	default:
		return fmt.Errorf("timestamp: unsupported type %T", src)
	}
	return nil
}

func (ts Timestamp) Value() (driver.Value, error) {
	return ts.Raw, nil
}
