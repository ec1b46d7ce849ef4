// Package query implements the in-memory filter, sort and pagination engine.
//
// Filters use a MongoDB-style grammar: a filter maps field names to
// conditions, a condition is either a bare value (shorthand for $eq) or an
// operator object such as {"$gte": 25, "$lte": 30}. All fields and all
// operators on one field must match (implicit AND).
package query

import "fmt"

// Operator identifies a filter operator. The set is closed: unknown operator
// tags are rejected when a filter is parsed, never at evaluation time.
type Operator uint8

const (
	// OpEqual matches values that are strictly equal ($eq).
	OpEqual Operator = iota
	// OpNotEqual matches values that are not strictly equal ($ne).
	OpNotEqual
	// OpGreaterThan matches larger numbers or lexicographically larger strings ($gt).
	OpGreaterThan
	// OpGreaterEqual is OpGreaterThan or OpEqual ($gte).
	OpGreaterEqual
	// OpLessThan matches smaller numbers or lexicographically smaller strings ($lt).
	OpLessThan
	// OpLessEqual is OpLessThan or OpEqual ($lte).
	OpLessEqual
	// OpIn matches values contained in the operand list ($in).
	OpIn
	// OpNotIn matches values absent from the operand list ($nin).
	OpNotIn
	// OpLike matches SQL-style patterns, case-insensitive and fully anchored ($like).
	OpLike
	// OpExists matches on value presence; null counts as absent ($exists).
	OpExists
)

// String returns the operator's wire tag.
func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "$eq"
	case OpNotEqual:
		return "$ne"
	case OpGreaterThan:
		return "$gt"
	case OpGreaterEqual:
		return "$gte"
	case OpLessThan:
		return "$lt"
	case OpLessEqual:
		return "$lte"
	case OpIn:
		return "$in"
	case OpNotIn:
		return "$nin"
	case OpLike:
		return "$like"
	case OpExists:
		return "$exists"
	default:
		return "unknown"
	}
}

// UnknownOperatorError is returned when a filter uses an operator tag that is
// not part of the grammar.
type UnknownOperatorError struct {
	Name string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("query: unknown operator %q", e.Name)
}

// ParseOperator resolves a wire tag like "$gte" to its Operator.
func ParseOperator(tag string) (Operator, error) {
	switch tag {
	case "$eq":
		return OpEqual, nil
	case "$ne":
		return OpNotEqual, nil
	case "$gt":
		return OpGreaterThan, nil
	case "$gte":
		return OpGreaterEqual, nil
	case "$lt":
		return OpLessThan, nil
	case "$lte":
		return OpLessEqual, nil
	case "$in":
		return OpIn, nil
	case "$nin":
		return OpNotIn, nil
	case "$like":
		return OpLike, nil
	case "$exists":
		return OpExists, nil
	default:
		return 0, &UnknownOperatorError{Name: tag}
	}
}
