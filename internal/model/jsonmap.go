package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value implements driver.Valuer so JSONMap can be written directly to
// a Postgres JSONB column via sqlx.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner so JSONMap can be read back out of a
// JSONB column. Legacy rows may carry trailing-space keys; callers
// should use TrimmedLookup below rather than indexing the map directly
// when reading fields that might have legacy padding.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("model: JSONMap.Scan: unsupported type %T", src)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := JSONMap{}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("model: JSONMap.Scan: %w", err)
	}
	*m = out
	return nil
}

// TrimmedLookup looks up key, and failing that, any key that is equal
// to it after trimming leading/trailing spaces — legacy document-store
// rows are known to carry trailing spaces in field names.
func (m JSONMap) TrimmedLookup(key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if trimSpace(k) == key {
			return v, true
		}
	}
	return nil, false
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
