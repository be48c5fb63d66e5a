package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a flat string map persisted as a JSONB column
type Metadata map[string]string

// SetIfNotEmpty stores value under key unless value is empty
func (m Metadata) SetIfNotEmpty(key, value string) {
	if value == "" {
		return
	}
	m[key] = value
}

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	result := make(Metadata)
	err := json.Unmarshal(raw, &result)
	*m = result
	return err
}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(make(Metadata))
	}
	return json.Marshal(m)
}
