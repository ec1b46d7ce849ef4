package query

import "strings"

// Condition is a single operator applied to one field.
type Condition struct {
	Op      Operator
	Operand any
}

// Filter maps field names to conditions. Every field and every condition on
// a field must match for a document to match.
type Filter map[string][]Condition

// Where starts a filter with one condition. Conditions on further fields are
// added with And.
func Where(field string, op Operator, operand any) Filter {
	return Filter{field: {{Op: op, Operand: operand}}}
}

// Eq is shorthand for Where(field, OpEqual, v).
func Eq(field string, v any) Filter {
	return Where(field, OpEqual, v)
}

// And adds a condition to the filter and returns it.
func (f Filter) And(field string, op Operator, operand any) Filter {
	f[field] = append(f[field], Condition{Op: op, Operand: operand})
	return f
}

// IsOperatorObject reports whether v is an operator object, i.e. a map whose
// keys are all operator tags. A bare map value without $-keys is an ordinary
// equality operand.
func IsOperatorObject(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// ParseFilter converts a MongoDB-style filter map into a Filter.
//
// Unknown operator tags fail here, before any document is evaluated.
func ParseFilter(m map[string]any) (Filter, error) {
	if len(m) == 0 {
		return nil, nil
	}
	f := make(Filter, len(m))
	for field, cond := range m {
		if IsOperatorObject(cond) {
			ops := cond.(map[string]any)
			conds := make([]Condition, 0, len(ops))
			for tag, operand := range ops {
				op, err := ParseOperator(tag)
				if err != nil {
					return nil, err
				}
				conds = append(conds, Condition{Op: op, Operand: operand})
			}
			f[field] = conds
			continue
		}
		f[field] = []Condition{{Op: OpEqual, Operand: cond}}
	}
	return f, nil
}

// MustParseFilter is ParseFilter that panics on invalid input. Intended for
// literals in tests and examples.
func MustParseFilter(m map[string]any) Filter {
	f, err := ParseFilter(m)
	if err != nil {
		panic(err)
	}
	return f
}
