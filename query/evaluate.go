package query

import (
	"github.com/hupe1980/docgo/document"
)

// Matches reports whether the document satisfies every condition of the
// filter. A nil filter matches everything.
func (f Filter) Matches(doc document.Document) bool {
	for field, conds := range f {
		value := doc[field]
		for _, c := range conds {
			if !c.Matches(value) {
				return false
			}
		}
	}
	return true
}

// Matches evaluates a single condition against a field value.
//
// Comparisons never fail: type pairings an operator is not defined for
// simply evaluate to false.
func (c Condition) Matches(value any) bool {
	switch c.Op {
	case OpEqual:
		return compareEqual(value, c.Operand)
	case OpNotEqual:
		return !compareEqual(value, c.Operand)
	case OpGreaterThan:
		return compareOrdered(value, c.Operand, func(cmp int) bool { return cmp > 0 })
	case OpGreaterEqual:
		return compareOrdered(value, c.Operand, func(cmp int) bool { return cmp >= 0 })
	case OpLessThan:
		return compareOrdered(value, c.Operand, func(cmp int) bool { return cmp < 0 })
	case OpLessEqual:
		return compareOrdered(value, c.Operand, func(cmp int) bool { return cmp <= 0 })
	case OpIn:
		return compareIn(value, c.Operand)
	case OpNotIn:
		// $nin is satisfied when the operand is not a list at all.
		return !compareIn(value, c.Operand)
	case OpLike:
		return compareLike(value, c.Operand)
	case OpExists:
		want, ok := c.Operand.(bool)
		if !ok {
			return false
		}
		return (value != nil) == want
	default:
		return false
	}
}

// compareEqual implements strict equality with no type coercion: numbers
// compare numerically across numeric kinds (a reloaded int comes back as
// float64 and must still be equal), strings and bools compare directly, and
// composite values compare by their canonical key.
func compareEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := document.Numeric(a); ok {
		fb, ok := document.Numeric(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return document.Key(a) == document.Key(b)
}

// compareOrdered applies a numeric or lexicographic comparison. Ordering is
// only defined for number/number and string/string pairs; anything else is
// false.
func compareOrdered(a, b any, accept func(cmp int) bool) bool {
	if fa, aok := document.Numeric(a); aok {
		fb, bok := document.Numeric(b)
		if !bok {
			return false
		}
		switch {
		case fa < fb:
			return accept(-1)
		case fa > fb:
			return accept(1)
		default:
			return accept(0)
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if !aok || !bok {
		return false
	}
	switch {
	case sa < sb:
		return accept(-1)
	case sa > sb:
		return accept(1)
	default:
		return accept(0)
	}
}

func compareIn(value, operand any) bool {
	list, ok := asList(operand)
	if !ok {
		return false
	}
	for _, item := range list {
		if compareEqual(value, item) {
			return true
		}
	}
	return false
}

func compareLike(value, operand any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	pattern, ok := operand.(string)
	if !ok {
		return false
	}
	return matchLike(pattern, s)
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}
