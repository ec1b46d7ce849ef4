package relation

import (
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/store"
)

// Accessor is the slice of a registered model the resolver depends on.
type Accessor interface {
	// Collection returns the backing collection name.
	Collection() string
	// Relations returns the model's declared relations by name.
	Relations() map[string]Definition
}

// Provider resolves model names to their accessors. It is the explicit
// registry the resolver works against; an unresolvable name fails relation
// resolution rather than silently skipping it.
type Provider interface {
	Model(name string) (Accessor, bool)
}

// Resolver attaches related documents to parent documents.
type Resolver struct {
	store  *store.Store
	models Provider
}

// NewResolver creates a Resolver reading through the given store.
func NewResolver(st *store.Store, models Provider) *Resolver {
	return &Resolver{store: st, models: models}
}

// Resolve attaches each relation in include to the parents and returns the
// result. Parents are shallow-copied before anything is attached, so the
// store's own documents are never mutated. Each relation is resolved with
// one batched query (two for ManyToMany: join rows plus related documents)
// against the original parent set.
func (r *Resolver) Resolve(model string, parents []document.Document, include []string) ([]document.Document, error) {
	if len(include) == 0 {
		return parents, nil
	}

	owner, ok := r.models.Model(model)
	if !ok {
		return nil, &UnregisteredModelError{Model: model}
	}

	out := make([]document.Document, len(parents))
	for i, p := range parents {
		out[i] = p.Clone()
	}

	for _, name := range include {
		def, ok := owner.Relations()[name]
		if !ok {
			return nil, &UnknownRelationError{Model: model, Relation: name}
		}
		related, ok := r.models.Model(def.Model)
		if !ok {
			return nil, &UnregisteredModelError{Model: def.Model}
		}

		var err error
		switch def.Kind {
		case HasMany:
			err = r.resolveHasChildren(out, name, def, related, false)
		case HasOne:
			err = r.resolveHasChildren(out, name, def, related, true)
		case BelongsTo:
			err = r.resolveBelongsTo(out, name, def, related)
		case ManyToMany:
			err = r.resolveManyToMany(model, out, name, def, related)
		default:
			err = &ConfigError{Model: model, Relation: name, Reason: "unsupported relation kind"}
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveHasChildren handles HasMany and HasOne: one query for all children
// of all parents, grouped by foreign key. For HasOne the first child in
// stored order wins; with several children per parent that choice is
// deterministic for a given store state but otherwise unspecified.
func (r *Resolver) resolveHasChildren(parents []document.Document, name string, def Definition, related Accessor, single bool) error {
	ids := parentIDs(parents)

	children, err := r.store.Find(related.Collection(), query.Options{
		Filter: query.Where(def.ForeignKey, query.OpIn, ids),
	})
	if err != nil {
		return err
	}

	byKey := make(map[string][]document.Document)
	for _, child := range children {
		key := document.Key(child[def.ForeignKey])
		byKey[key] = append(byKey[key], child)
	}

	for _, parent := range parents {
		group := byKey[document.Key(parent.ID())]
		if single {
			if len(group) > 0 {
				parent[name] = group[0].Clone()
			} else {
				parent[name] = nil
			}
			continue
		}
		attached := make([]document.Document, 0, len(group))
		for _, child := range group {
			attached = append(attached, child.Clone())
		}
		parent[name] = attached
	}
	return nil
}

// resolveBelongsTo follows the parents' own foreign keys. Parents without a
// foreign-key value get nil without a query being issued for them.
func (r *Resolver) resolveBelongsTo(parents []document.Document, name string, def Definition, related Accessor) error {
	var ids []string
	seen := make(map[string]bool)
	for _, parent := range parents {
		id, ok := parent[def.ForeignKey].(string)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	byID := make(map[string]document.Document)
	if len(ids) > 0 {
		docs, err := r.store.Find(related.Collection(), query.Options{
			Filter: query.Where(document.FieldID, query.OpIn, ids),
		})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			byID[doc.ID()] = doc
		}
	}

	for _, parent := range parents {
		parent[name] = nil
		if id, ok := parent[def.ForeignKey].(string); ok && id != "" {
			if doc, found := byID[id]; found {
				parent[name] = doc.Clone()
			}
		}
	}
	return nil
}

// resolveManyToMany walks the join collection: one query for the join rows
// of all parents, one for the distinct related documents, then regrouping
// through the rows. A parent with no join rows gets an empty array.
func (r *Resolver) resolveManyToMany(model string, parents []document.Document, name string, def Definition, related Accessor) error {
	if def.JoinCollection == "" || def.RelatedKey == "" {
		return &ConfigError{Model: model, Relation: name, Reason: "manyToMany requires joinCollection and relatedKey"}
	}

	rows, err := r.store.Find(def.JoinCollection, query.Options{
		Filter: query.Where(def.ForeignKey, query.OpIn, parentIDs(parents)),
	})
	if err != nil {
		return err
	}

	var relatedIDs []string
	seen := make(map[string]bool)
	for _, row := range rows {
		if id, ok := row[def.RelatedKey].(string); ok && id != "" && !seen[id] {
			seen[id] = true
			relatedIDs = append(relatedIDs, id)
		}
	}

	byID := make(map[string]document.Document)
	if len(relatedIDs) > 0 {
		docs, err := r.store.Find(related.Collection(), query.Options{
			Filter: query.Where(document.FieldID, query.OpIn, relatedIDs),
		})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			byID[doc.ID()] = doc
		}
	}

	grouped := make(map[string][]document.Document)
	for _, row := range rows {
		parentID, _ := row[def.ForeignKey].(string)
		relatedID, _ := row[def.RelatedKey].(string)
		if doc, found := byID[relatedID]; found {
			grouped[parentID] = append(grouped[parentID], doc)
		}
	}

	for _, parent := range parents {
		group := grouped[parent.ID()]
		attached := make([]document.Document, 0, len(group))
		for _, doc := range group {
			attached = append(attached, doc.Clone())
		}
		parent[name] = attached
	}
	return nil
}

// Associate links a parent and a related document through a ManyToMany
// relation by inserting one join row. It fails for any other relation kind.
func (r *Resolver) Associate(model, relationName, parentID, relatedID string) error {
	def, err := r.manyToMany(model, relationName)
	if err != nil {
		return err
	}

	now := document.Now()
	_, err = r.store.Insert(def.JoinCollection, document.Document{
		document.FieldID:        document.NewID(),
		document.FieldCreatedAt: now,
		document.FieldUpdatedAt: now,
		def.ForeignKey:          parentID,
		def.RelatedKey:          relatedID,
	})
	return err
}

// Dissociate removes every join row linking the parent and related
// document. It fails for any relation kind other than ManyToMany.
func (r *Resolver) Dissociate(model, relationName, parentID, relatedID string) error {
	def, err := r.manyToMany(model, relationName)
	if err != nil {
		return err
	}

	filter := query.Eq(def.ForeignKey, parentID).And(def.RelatedKey, query.OpEqual, relatedID)
	_, err = r.store.DeleteMany(def.JoinCollection, filter)
	return err
}

func (r *Resolver) manyToMany(model, relationName string) (Definition, error) {
	owner, ok := r.models.Model(model)
	if !ok {
		return Definition{}, &UnregisteredModelError{Model: model}
	}
	def, ok := owner.Relations()[relationName]
	if !ok {
		return Definition{}, &UnknownRelationError{Model: model, Relation: relationName}
	}
	if def.Kind != ManyToMany {
		return Definition{}, &ConfigError{Model: model, Relation: relationName, Reason: "operation requires a manyToMany relation, got " + def.Kind.String()}
	}
	if def.JoinCollection == "" || def.RelatedKey == "" {
		return Definition{}, &ConfigError{Model: model, Relation: relationName, Reason: "manyToMany requires joinCollection and relatedKey"}
	}
	return def, nil
}

func parentIDs(parents []document.Document) []string {
	ids := make([]string, 0, len(parents))
	for _, parent := range parents {
		ids = append(ids, parent.ID())
	}
	return ids
}
