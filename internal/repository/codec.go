package repository

import (
	"encoding/json"
	"fmt"
	"time"
)

func encodeDomains(domains []string) ([]byte, error) {
	if domains == nil {
		domains = []string{}
	}
	return json.Marshal(domains)
}

func decodeDomains(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var domains []string
	if err := json.Unmarshal([]byte(raw), &domains); err != nil {
		return nil, fmt.Errorf("decode domains: %w", err)
	}
	return domains, nil
}

// sqliteTime scans the stored_at column. The driver may hand back either a
// time.Time or the CURRENT_TIMESTAMP text form depending on the column's
// declared type.
type sqliteTime struct {
	time.Time
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (t *sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported stored_at type %T", src)
	}
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized stored_at value %q", s)
}
