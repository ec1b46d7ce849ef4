package schema

import (
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/docgo/document"
)

// ValidationError describes the first schema violation found in a document.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: validation failed for field %q: %s", e.Field, e.Reason)
}

// Validate checks data against the schema and returns the validated (and
// possibly coerced) document.
//
// In create mode (isUpdate=false) defaults are applied and required fields
// enforced. In update mode absent fields are skipped entirely: no defaults,
// no required check, so partial patches validate only what they carry.
// Fields not covered by the schema pass through unchanged in both modes.
//
// Checks for one field run in order required, type, length/range, enum and
// stop at the first violation; the first failing field aborts validation.
// Fields are walked in lexical name order so failures are deterministic.
func Validate(data document.Document, s Schema, isUpdate bool) (document.Document, error) {
	out := data.Clone()
	if out == nil {
		out = document.Document{}
	}

	for _, name := range s.fieldNames() {
		f := s[name]
		value, present := out[name]
		if value == nil {
			present = false
		}

		if !present {
			if isUpdate {
				continue
			}
			if f.DefaultFunc != nil {
				value = f.DefaultFunc()
			} else if f.Default != nil {
				value = f.Default
			}
			if value == nil {
				if f.Required {
					return nil, &ValidationError{Field: name, Reason: "field is required"}
				}
				continue
			}
			out[name] = value
		}

		coerced, err := checkType(name, value, f.Type)
		if err != nil {
			return nil, err
		}
		out[name] = coerced

		if err := checkBounds(name, coerced, f); err != nil {
			return nil, err
		}
		if err := checkEnum(name, coerced, f); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// checkType applies the structural predicate of the declared type and
// returns the (possibly coerced) value. Only date values are coerced: a
// native time.Time becomes its canonical ISO-8601 string.
func checkType(name string, value any, t FieldType) (any, error) {
	switch t {
	case FieldTypeString:
		if _, ok := value.(string); !ok {
			return nil, typeError(name, "string", value)
		}
	case FieldTypeNumber:
		f, ok := document.Numeric(value)
		if !ok || math.IsNaN(f) {
			return nil, typeError(name, "number", value)
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return nil, typeError(name, "boolean", value)
		}
	case FieldTypeDate:
		switch v := value.(type) {
		case time.Time:
			return document.FormatTime(v), nil
		case string:
			if !parseableDate(v) {
				return nil, typeError(name, "date", value)
			}
		default:
			return nil, typeError(name, "date", value)
		}
	case FieldTypeJSON:
		// Any value is valid JSON content.
	case FieldTypeArray:
		switch value.(type) {
		case []any, []string, []int, []float64, []bool, []map[string]any:
		default:
			return nil, typeError(name, "array", value)
		}
	}
	return value, nil
}

func checkBounds(name string, value any, f Field) error {
	switch f.Type {
	case FieldTypeString:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if f.MinLength != nil && len(s) < *f.MinLength {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("length %d is below minLength %d", len(s), *f.MinLength)}
		}
		if f.MaxLength != nil && len(s) > *f.MaxLength {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("length %d exceeds maxLength %d", len(s), *f.MaxLength)}
		}
	case FieldTypeNumber:
		n, ok := document.Numeric(value)
		if !ok {
			return nil
		}
		if f.Min != nil && n < *f.Min {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("value %v is below min %v", n, *f.Min)}
		}
		if f.Max != nil && n > *f.Max {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("value %v exceeds max %v", n, *f.Max)}
		}
	}
	return nil
}

func checkEnum(name string, value any, f Field) error {
	if len(f.Enum) == 0 {
		return nil
	}
	key := document.Key(value)
	for _, allowed := range f.Enum {
		if document.Key(allowed) == key {
			return nil
		}
	}
	return &ValidationError{Field: name, Reason: fmt.Sprintf("value %v is not a member of the enum", value)}
}

func typeError(name, expected string, actual any) error {
	return &ValidationError{
		Field:  name,
		Reason: fmt.Sprintf("expected %s, got %T", expected, actual),
	}
}

var dateLayouts = []string{
	document.TimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

func parseableDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
