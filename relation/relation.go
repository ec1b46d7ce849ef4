// Package relation declares model relationships and resolves them eagerly
// at query time with batched lookups, one query per relation regardless of
// the number of parent documents.
package relation

import "fmt"

// Kind enumerates the supported relationship types.
type Kind uint8

const (
	// HasMany attaches all related documents whose foreign key points at
	// the parent, as an array.
	HasMany Kind = iota
	// HasOne attaches the first such related document, or nil.
	HasOne
	// BelongsTo follows a foreign key on the parent to a single related
	// document, or nil.
	BelongsTo
	// ManyToMany connects parents and related documents through a join
	// collection.
	ManyToMany
)

func (k Kind) String() string {
	switch k {
	case HasMany:
		return "hasMany"
	case HasOne:
		return "hasOne"
	case BelongsTo:
		return "belongsTo"
	case ManyToMany:
		return "manyToMany"
	default:
		return "unknown"
	}
}

// Definition describes one named relation of a model.
type Definition struct {
	// Kind of the relationship.
	Kind Kind
	// Model is the name of the related model.
	Model string
	// ForeignKey is the field holding the owning side's id: on the
	// related documents for HasMany/HasOne, on the parent for BelongsTo,
	// and on the join rows for ManyToMany.
	ForeignKey string
	// JoinCollection is the collection holding the join rows
	// (ManyToMany only).
	JoinCollection string
	// RelatedKey is the join-row field holding the related document's id
	// (ManyToMany only).
	RelatedKey string
}

// UnknownRelationError is returned when an include list names a relation
// the owning model does not declare.
type UnknownRelationError struct {
	Model    string
	Relation string
}

func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("model %q has no relation %q", e.Model, e.Relation)
}

// UnregisteredModelError is returned when a relation references a model
// that has not been registered.
type UnregisteredModelError struct {
	Model string
}

func (e *UnregisteredModelError) Error() string {
	return fmt.Sprintf("related model %q is not registered", e.Model)
}

// ConfigError is returned when a relation is declared or used in a way its
// kind does not support, such as a ManyToMany relation missing its join
// fields or associate called on a HasMany relation.
type ConfigError struct {
	Model    string
	Relation string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("relation %q on model %q: %s", e.Relation, e.Model, e.Reason)
}
