package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Tags is a list of labels stored as a JSON array in a TEXT column.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("tags: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = out
	return nil
}

// JSONDoc is an arbitrary JSON object stored in a TEXT column.
type JSONDoc map[string]interface{}

// Value implements driver.Valuer.
func (d JSONDoc) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *JSONDoc) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("json doc: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*d = nil
		return nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("json doc: %w", err)
	}
	*d = out
	return nil
}

// String returns the named field when it is a string, or "".
func (d JSONDoc) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}
