// Package index maintains per-collection field indexes.
//
// Each indexed field keeps an inverted map from canonical value key to a
// Roaring Bitmap of internal row ids. Document ids are strings, so every
// collection index owns a small id dictionary (string id to dense uint32 row
// id) and bitmaps only ever reference rows, never documents.
//
// Index state is in-memory only and rebuilt from the full document set on
// collection load.
package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/docgo/document"
)

// UniqueConstraintError is returned when an insert or update would duplicate
// a value on a field marked unique.
type UniqueConstraintError struct {
	Collection string
	Field      string
	Value      any
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("index: unique constraint violated on %s.%s for value %v", e.Collection, e.Field, e.Value)
}

// Collection holds all field indexes of one collection.
//
// It is not safe for concurrent use on its own; the document store adapter
// serializes all mutations.
type Collection struct {
	name    string
	rows    map[string]uint32
	ids     map[uint32]string
	nextRow uint32
	fields  map[string]*fieldIndex
}

type fieldIndex struct {
	unique   bool
	postings map[string]*roaring.Bitmap
}

// NewCollection creates an empty index set for the named collection.
func NewCollection(name string) *Collection {
	return &Collection{
		name:   name,
		rows:   make(map[string]uint32),
		ids:    make(map[uint32]string),
		fields: make(map[string]*fieldIndex),
	}
}

// SetupIndex builds the index for one field from a full document scan.
// Called once per indexed field at collection initialization; a unique
// violation already present in the snapshot fails the build.
func (c *Collection) SetupIndex(field string, unique bool, docs []document.Document) error {
	fi := &fieldIndex{
		unique:   unique,
		postings: make(map[string]*roaring.Bitmap),
	}
	for _, doc := range docs {
		key := document.Key(doc[field])
		bm := fi.postings[key]
		if unique && bm != nil && !bm.IsEmpty() {
			return &UniqueConstraintError{Collection: c.name, Field: field, Value: doc[field]}
		}
		if bm == nil {
			bm = roaring.New()
			fi.postings[key] = bm
		}
		bm.Add(c.row(doc.ID()))
	}
	c.fields[field] = fi
	return nil
}

// OnInsert registers a document in every field index.
//
// All unique constraints are validated before any posting list is touched,
// so a failed insert leaves the index exactly as it was.
func (c *Collection) OnInsert(doc document.Document) error {
	for field, fi := range c.fields {
		if !fi.unique {
			continue
		}
		key := document.Key(doc[field])
		if bm, ok := fi.postings[key]; ok && !bm.IsEmpty() {
			return &UniqueConstraintError{Collection: c.name, Field: field, Value: doc[field]}
		}
	}

	row := c.row(doc.ID())
	for field, fi := range c.fields {
		fi.add(document.Key(doc[field]), row)
	}
	return nil
}

// OnUpdate moves a document between posting lists for every indexed field
// whose value changed. Uniqueness of each new value is re-checked (ignoring
// the document's own row) before any mutation.
func (c *Collection) OnUpdate(oldDoc, newDoc document.Document) error {
	row, ok := c.rows[oldDoc.ID()]
	if !ok {
		return fmt.Errorf("index: document %q not indexed in %s", oldDoc.ID(), c.name)
	}

	for field, fi := range c.fields {
		if !fi.unique {
			continue
		}
		oldKey := document.Key(oldDoc[field])
		newKey := document.Key(newDoc[field])
		if oldKey == newKey {
			continue
		}
		if bm, ok := fi.postings[newKey]; ok && !bm.IsEmpty() {
			// The old key differs, so this row cannot be the occupant.
			return &UniqueConstraintError{Collection: c.name, Field: field, Value: newDoc[field]}
		}
	}

	for field, fi := range c.fields {
		oldKey := document.Key(oldDoc[field])
		newKey := document.Key(newDoc[field])
		if oldKey == newKey {
			continue
		}
		fi.remove(oldKey, row)
		fi.add(newKey, row)
	}
	return nil
}

// OnDelete removes a document from every field index and frees its row id.
func (c *Collection) OnDelete(doc document.Document) {
	row, ok := c.rows[doc.ID()]
	if !ok {
		return
	}
	for field, fi := range c.fields {
		fi.remove(document.Key(doc[field]), row)
	}
	delete(c.rows, doc.ID())
	delete(c.ids, row)
}

// FindByValue returns the ids of all documents whose field holds the given
// value, or ok=false when the field carries no index.
func (c *Collection) FindByValue(field string, value any) ([]string, bool) {
	fi, ok := c.fields[field]
	if !ok {
		return nil, false
	}
	bm, ok := fi.postings[document.Key(value)]
	if !ok || bm.IsEmpty() {
		return nil, true
	}
	ids := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, c.ids[it.Next()])
	}
	return ids, true
}

// HasIndex reports whether the field carries an index.
func (c *Collection) HasIndex(field string) bool {
	_, ok := c.fields[field]
	return ok
}

// row interns a document id, assigning a fresh row id on first use.
func (c *Collection) row(id string) uint32 {
	if row, ok := c.rows[id]; ok {
		return row
	}
	row := c.nextRow
	c.nextRow++
	c.rows[id] = row
	c.ids[row] = id
	return row
}

func (fi *fieldIndex) add(key string, row uint32) {
	bm, ok := fi.postings[key]
	if !ok {
		bm = roaring.New()
		fi.postings[key] = bm
	}
	bm.Add(row)
}

func (fi *fieldIndex) remove(key string, row uint32) {
	bm, ok := fi.postings[key]
	if !ok {
		return
	}
	bm.Remove(row)
	if bm.IsEmpty() {
		delete(fi.postings, key)
	}
}
