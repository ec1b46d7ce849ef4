package docgo

import (
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/relation"
	"github.com/hupe1980/docgo/schema"
)

// Model is a collection-scoped, schema-validated accessor registered on a
// DB. All methods are safe for concurrent use.
//
// Returned documents are private copies; mutating them never affects the
// stored data.
type Model struct {
	db         *DB
	name       string
	collection string
	schema     schema.Schema
	relations  map[string]relation.Definition
	logger     *Logger
}

// Name returns the model's registered name.
func (m *Model) Name() string { return m.name }

// Collection returns the backing collection name.
func (m *Model) Collection() string { return m.collection }

// Relations returns the model's declared relations by name.
func (m *Model) Relations() map[string]relation.Definition { return m.relations }

// Create validates data against the schema (applying defaults), stamps id,
// createdAt and updatedAt, and stores the document. An id supplied by the
// caller is kept.
func (m *Model) Create(data document.Document) (document.Document, error) {
	validated, err := schema.Validate(data, m.schema, false)
	if err != nil {
		m.logger.LogCreate("", err)
		return nil, err
	}

	if validated.ID() == "" {
		validated[document.FieldID] = document.NewID()
	}
	now := document.Now()
	validated[document.FieldCreatedAt] = now
	validated[document.FieldUpdatedAt] = now

	stored, err := m.db.store.Insert(m.collection, validated)
	m.logger.LogCreate(validated.ID(), err)
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// CreateMany creates the documents one at a time, in order. A failure
// partway through leaves the earlier creates committed; the documents
// created so far are returned alongside the error.
func (m *Model) CreateMany(data []document.Document) ([]document.Document, error) {
	created := make([]document.Document, 0, len(data))
	for _, d := range data {
		doc, err := m.Create(d)
		if err != nil {
			return created, err
		}
		created = append(created, doc)
	}
	return created, nil
}

// FindByID returns the document with the given id, or nil when absent.
// Relations named in include are attached.
func (m *Model) FindByID(id string, include ...string) (document.Document, error) {
	doc, err := m.db.store.FindByID(m.collection, id)
	if err != nil || doc == nil {
		return nil, err
	}
	return m.attach(doc, include)
}

// FindByIDOrFail is FindByID returning a DocumentNotFoundError instead of
// nil when the id is absent.
func (m *Model) FindByIDOrFail(id string, include ...string) (document.Document, error) {
	doc, err := m.FindByID(id, include...)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &DocumentNotFoundError{Model: m.name, ID: id}
	}
	return doc, nil
}

// Find returns the documents matching the options, with the named
// relations attached.
func (m *Model) Find(opts query.Options, include ...string) ([]document.Document, error) {
	docs, err := m.db.store.Find(m.collection, opts)
	if err != nil {
		return nil, err
	}
	if len(include) > 0 {
		return m.db.resolver.Resolve(m.name, docs, include)
	}
	out := make([]document.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out, nil
}

// FindOne returns the first document matching the options, or nil when
// nothing matches.
func (m *Model) FindOne(opts query.Options, include ...string) (document.Document, error) {
	opts.Limit = 1
	docs, err := m.Find(opts, include...)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Count returns the number of documents matching the filter. A nil filter
// counts the whole collection.
func (m *Model) Count(f query.Filter) (int, error) {
	return m.db.store.Count(m.collection, f)
}

// Update validates the partial data in update mode (absent fields are
// skipped, defaults are not applied), stamps updatedAt and merges it over
// the stored document. Returns nil when the id is absent. The id field is
// immutable.
func (m *Model) Update(id string, partial document.Document) (document.Document, error) {
	validated, err := schema.Validate(partial, m.schema, true)
	if err != nil {
		m.logger.LogUpdate(id, err)
		return nil, err
	}
	validated[document.FieldUpdatedAt] = document.Now()

	updated, err := m.db.store.Update(m.collection, id, validated)
	m.logger.LogUpdate(id, err)
	if err != nil || updated == nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// UpdateOrFail is Update returning a DocumentNotFoundError instead of nil
// when the id is absent.
func (m *Model) UpdateOrFail(id string, partial document.Document) (document.Document, error) {
	doc, err := m.Update(id, partial)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &DocumentNotFoundError{Model: m.name, ID: id}
	}
	return doc, nil
}

// Delete removes the document with the given id and reports whether a
// document was actually removed.
func (m *Model) Delete(id string) (bool, error) {
	removed, err := m.db.store.Delete(m.collection, id)
	m.logger.LogDelete(id, removed, err)
	return removed, err
}

// DeleteMany removes every document matching the filter and returns the
// number removed. The whole batch is covered by a single durable write.
func (m *Model) DeleteMany(f query.Filter) (int, error) {
	return m.db.store.DeleteMany(m.collection, f)
}

// Associate links this model's document to a related document through a
// manyToMany relation.
func (m *Model) Associate(relationName, id, relatedID string) error {
	return m.db.resolver.Associate(m.name, relationName, id, relatedID)
}

// Dissociate removes the manyToMany link between this model's document and
// a related document.
func (m *Model) Dissociate(relationName, id, relatedID string) error {
	return m.db.resolver.Dissociate(m.name, relationName, id, relatedID)
}

func (m *Model) attach(doc document.Document, include []string) (document.Document, error) {
	if len(include) == 0 {
		return doc.Clone(), nil
	}
	resolved, err := m.db.resolver.Resolve(m.name, []document.Document{doc}, include)
	if err != nil {
		return nil, err
	}
	return resolved[0], nil
}
