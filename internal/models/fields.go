package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FieldKind tags a category field descriptor
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldSelect   FieldKind = "select"
	FieldCheckbox FieldKind = "checkbox"
	FieldDate     FieldKind = "date"
)

// FieldDescriptor describes one category-supplied attribute input. Only the
// constraints relevant to Kind are read.
type FieldDescriptor struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Kind      FieldKind `json:"kind"`
	Required  bool      `json:"required,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	Options   []string  `json:"options,omitempty"`
}

// FieldList is stored as a JSONB array
type FieldList []FieldDescriptor

func (f FieldList) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

func (f *FieldList) Scan(src any) error {
	return scanJSON(src, f)
}

// JSONMap is stored as a JSONB object
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
