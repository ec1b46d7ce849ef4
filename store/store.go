// Package store implements the collection-scoped CRUD adapter on top of the
// persistence engine, the field indexer and the query layer.
//
// Reads are served from the in-memory document lists; indexes are maintained
// on the write path only and are consulted for uniqueness enforcement, not
// for query acceleration. Every mutating operation updates the indexes
// before the in-memory list, marks the collection dirty and flushes, so a
// successful return implies the change is durable.
package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/persist"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/schema"
)

// CollectionNotFoundError is returned by any CRUD operation addressed at a
// collection that was never created.
type CollectionNotFoundError struct {
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found", e.Collection)
}

// Options configures a Store.
type Options struct {
	Codec       codec.Codec
	Compression persist.Compression
	Logger      *slog.Logger
}

// Store is a document store over one data directory.
//
// All methods are safe for concurrent use. Returned documents are the live
// in-memory maps; callers that hand documents onward must clone them before
// mutating or attaching transient fields.
type Store struct {
	engine *persist.Engine
	logger *slog.Logger

	mu      sync.Mutex
	indexes map[string]*index.Collection
	schemas map[string]schema.Schema
}

// Open loads (or creates) the data directory and returns a connected store.
// Collections already present on disk are usable immediately; their indexes
// are rebuilt when a schema is registered via CreateCollection.
func Open(dir string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	engine, err := persist.Open(dir, persist.Options{
		Codec:       opts.Codec,
		Compression: opts.Compression,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{
		engine:  engine,
		logger:  opts.Logger,
		indexes: make(map[string]*index.Collection),
		schemas: make(map[string]schema.Schema),
	}
	for _, name := range engine.ListCollections() {
		s.indexes[name] = index.NewCollection(name)
	}
	return s, nil
}

// Close flushes pending changes and releases the store.
func (s *Store) Close() error {
	return s.engine.Close()
}

// CreateCollection initializes a collection with the given schema. For a
// collection already present (created earlier or loaded from disk) it
// registers the schema and rebuilds the field indexes from the current
// document set; existing documents violating a unique constraint fail the
// rebuild.
func (s *Store) CreateCollection(name string, def schema.Definition) error {
	sch := schema.Normalize(def)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.HasCollection(name) {
		if err := s.engine.CreateCollection(name); err != nil {
			return err
		}
	}

	docs, _ := s.engine.Docs(name)
	idx := index.NewCollection(name)
	for _, f := range sch.IndexedFields() {
		if err := idx.SetupIndex(f.Name, f.Unique, docs); err != nil {
			return err
		}
	}
	s.indexes[name] = idx
	s.schemas[name] = sch

	s.logger.Debug("collection ready", "collection", name, "documents", len(docs))
	return nil
}

// DropCollection discards a collection, its indexes and its backing file.
func (s *Store) DropCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.DropCollection(name); err != nil {
		return err
	}
	delete(s.indexes, name)
	delete(s.schemas, name)
	return nil
}

// ListCollections returns all collection names in sorted order.
func (s *Store) ListCollections() []string {
	return s.engine.ListCollections()
}

// Schema returns the registered schema of a collection, if any.
func (s *Store) Schema(name string) (schema.Schema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schemas[name]
	return sch, ok
}

// Insert appends a document to a collection. Uniqueness checks run before
// any state is mutated; on success the change is flushed and the stored
// document is returned.
func (s *Store) Insert(collection string, doc document.Document) (document.Document, error) {
	s.mu.Lock()
	docs, idx, err := s.collection(collection)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	id := doc.ID()
	if id != "" && findByID(docs, id) >= 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("document %q already exists in collection %q", id, collection)
	}
	if err := idx.OnInsert(doc); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.engine.SetDocs(collection, append(docs, doc))
	s.mu.Unlock()

	if err := s.engine.Flush(); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByID returns the document with the given id, or nil when absent.
func (s *Store) FindByID(collection, id string) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, _, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if i := findByID(docs, id); i >= 0 {
		return docs[i], nil
	}
	return nil, nil
}

// Find returns the documents matching the given options, in stored order
// unless a sort is requested.
func (s *Store) Find(collection string, opts query.Options) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, _, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return opts.Apply(docs), nil
}

// Count returns the number of documents matching the filter. A nil filter
// counts the whole collection.
func (s *Store) Count(collection string, f query.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, _, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return query.Count(docs, f), nil
}

// Update merges partial data over the document with the given id and
// returns the merged document, or nil when the id is absent. The id field
// is immutable; an id in the partial data is ignored. Uniqueness checks
// run on the merged result before anything is committed.
func (s *Store) Update(collection, id string, partial document.Document) (document.Document, error) {
	s.mu.Lock()
	docs, idx, err := s.collection(collection)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	i := findByID(docs, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil
	}

	old := docs[i]
	merged := old.Clone()
	for field, value := range partial {
		if field == document.FieldID {
			continue
		}
		merged[field] = value
	}

	if err := idx.OnUpdate(old, merged); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	// Copy-on-write: the previous slice may be mid-encode on the writer
	// goroutine, so the stored element is never mutated in place.
	next := make([]document.Document, len(docs))
	copy(next, docs)
	next[i] = merged
	s.engine.SetDocs(collection, next)
	s.mu.Unlock()

	if err := s.engine.Flush(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes the document with the given id and reports whether a
// document was actually removed.
func (s *Store) Delete(collection, id string) (bool, error) {
	s.mu.Lock()
	docs, idx, err := s.collection(collection)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := findByID(docs, id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}

	idx.OnDelete(docs[i])
	s.engine.SetDocs(collection, append(docs[:i:i], docs[i+1:]...))
	s.mu.Unlock()

	return true, s.engine.Flush()
}

// DeleteMany removes every document matching the filter in one pass,
// updating indexes per removed document and flushing once for the whole
// batch. Returns the number of documents removed.
func (s *Store) DeleteMany(collection string, f query.Filter) (int, error) {
	s.mu.Lock()
	docs, idx, err := s.collection(collection)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	remaining := docs[:0:0]
	removed := 0
	for _, doc := range docs {
		if f.Matches(doc) {
			idx.OnDelete(doc)
			removed++
			continue
		}
		remaining = append(remaining, doc)
	}

	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}

	s.engine.SetDocs(collection, remaining)
	s.mu.Unlock()

	if err := s.engine.Flush(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Flush forces a durable write of all dirty collections.
func (s *Store) Flush() error {
	return s.engine.Flush()
}

// ExportFiles returns a consistent snapshot of every collection encoded as
// it would appear on disk, keyed by file name. Used by backups.
func (s *Store) ExportFiles() (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ExportFiles()
}

// collection returns the documents and index of a collection. Callers hold
// s.mu.
func (s *Store) collection(name string) ([]document.Document, *index.Collection, error) {
	docs, ok := s.engine.Docs(name)
	if !ok {
		return nil, nil, &CollectionNotFoundError{Collection: name}
	}
	idx, ok := s.indexes[name]
	if !ok {
		idx = index.NewCollection(name)
		s.indexes[name] = idx
	}
	return docs, idx, nil
}

func findByID(docs []document.Document, id string) int {
	for i, doc := range docs {
		if doc.ID() == id {
			return i
		}
	}
	return -1
}
