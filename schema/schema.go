// Package schema turns declarative field definitions into their canonical
// form and validates documents against them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldType defines the data type of a schema field.
type FieldType uint8

const (
	// FieldTypeString accepts string values.
	FieldTypeString FieldType = iota
	// FieldTypeNumber accepts numeric values (NaN excluded).
	FieldTypeNumber
	// FieldTypeBoolean accepts bool values.
	FieldTypeBoolean
	// FieldTypeDate accepts time.Time values or parseable date strings.
	FieldTypeDate
	// FieldTypeJSON accepts any value.
	FieldTypeJSON
	// FieldTypeArray accepts slice values.
	FieldTypeArray
)

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	switch t {
	case FieldTypeString:
		return "string"
	case FieldTypeNumber:
		return "number"
	case FieldTypeBoolean:
		return "boolean"
	case FieldTypeDate:
		return "date"
	case FieldTypeJSON:
		return "json"
	case FieldTypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// ParseFieldType resolves a type name like "string" to its FieldType.
func ParseFieldType(name string) (FieldType, error) {
	switch name {
	case "string":
		return FieldTypeString, nil
	case "number":
		return FieldTypeNumber, nil
	case "boolean":
		return FieldTypeBoolean, nil
	case "date":
		return FieldTypeDate, nil
	case "json":
		return FieldTypeJSON, nil
	case "array":
		return FieldTypeArray, nil
	default:
		return 0, fmt.Errorf("schema: unknown field type %q", name)
	}
}

// MarshalJSON implements json.Marshaler.
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseFieldType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Field is one declarative field definition. The zero value of the flag and
// constraint fields is the shorthand form: a bare type with everything off.
type Field struct {
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Unique   bool      `json:"unique,omitempty"`
	Index    bool      `json:"index,omitempty"`

	// Default is applied on create when the field is absent. DefaultFunc
	// takes precedence and is invoked per document; it never round-trips
	// through JSON.
	Default     any        `json:"default,omitempty"`
	DefaultFunc func() any `json:"-"`

	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Enum      []any    `json:"enum,omitempty"`
}

// UnmarshalJSON accepts either the full object form or the shorthand form, a
// bare type name string.
func (f *Field) UnmarshalJSON(data []byte) error {
	var shorthand string
	if err := json.Unmarshal(data, &shorthand); err == nil {
		t, err := ParseFieldType(shorthand)
		if err != nil {
			return err
		}
		*f = Field{Type: t}
		return nil
	}

	type alias Field
	var full alias
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*f = Field(full)
	return nil
}

// Definition is the raw, declarative schema: field name to definition.
type Definition map[string]Field

// Schema is a normalized Definition. It is immutable once a collection has
// been initialized with it.
type Schema map[string]Field

// Normalize canonicalizes a definition. A unique field is always indexed.
func Normalize(def Definition) Schema {
	s := make(Schema, len(def))
	for name, f := range def {
		if f.Unique {
			f.Index = true
		}
		s[name] = f
	}
	return s
}

// IndexedFields returns the names of all indexed fields with their
// uniqueness flag, in deterministic order.
func (s Schema) IndexedFields() []IndexedField {
	var out []IndexedField
	for name, f := range s {
		if f.Index {
			out = append(out, IndexedField{Name: name, Unique: f.Unique})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IndexedField names a field that carries an index.
type IndexedField struct {
	Name   string
	Unique bool
}

// fieldNames returns the schema's field names in the deterministic order
// validation walks them.
func (s Schema) fieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
