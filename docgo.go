package docgo

import (
	"fmt"
	"sync"

	"github.com/hupe1980/docgo/relation"
	"github.com/hupe1980/docgo/schema"
	"github.com/hupe1980/docgo/store"
)

// DB is an embedded document database over one data directory.
//
// A DB owns the model registry relations are resolved against: models
// reference each other by name, so they can be registered in any order as
// long as all of them are registered before relations are used.
type DB struct {
	store    *store.Store
	resolver *relation.Resolver
	logger   *Logger

	mu     sync.RWMutex
	models map[string]*Model
}

// Open loads (or creates) the data directory and returns a ready database.
func Open(dir string, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	st, err := store.Open(dir, store.Options{
		Codec:       o.codec,
		Compression: o.compression,
		Logger:      o.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	db := &DB{
		store:  st,
		logger: o.logger,
		models: make(map[string]*Model),
	}
	db.resolver = relation.NewResolver(st, modelProvider{db: db})
	return db, nil
}

// RegisterModel initializes a collection with the given schema and binds a
// named model to it. Join collections of manyToMany relations are created
// automatically when missing.
//
// For a collection that already exists on disk, the schema's indexes are
// rebuilt from the loaded documents; existing unique-constraint violations
// fail the registration.
func (db *DB) RegisterModel(name, collection string, def schema.Definition, relations map[string]relation.Definition) (*Model, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.models[name]; exists {
		return nil, fmt.Errorf("model %q is already registered", name)
	}

	if err := db.store.CreateCollection(collection, def); err != nil {
		return nil, err
	}
	for relName, rel := range relations {
		if rel.Kind == relation.ManyToMany {
			if rel.ForeignKey == "" || rel.JoinCollection == "" || rel.RelatedKey == "" {
				return nil, &relation.ConfigError{
					Model:    name,
					Relation: relName,
					Reason:   "manyToMany requires foreignKey, joinCollection and relatedKey",
				}
			}
			joinDef := schema.Definition{
				rel.ForeignKey: {Type: schema.FieldTypeString, Index: true},
				rel.RelatedKey: {Type: schema.FieldTypeString, Index: true},
			}
			if err := db.store.CreateCollection(rel.JoinCollection, joinDef); err != nil {
				return nil, err
			}
		}
	}

	sch, _ := db.store.Schema(collection)
	m := &Model{
		db:         db,
		name:       name,
		collection: collection,
		schema:     sch,
		relations:  relations,
		logger:     db.logger.WithModel(name),
	}
	db.models[name] = m
	return m, nil
}

// Model returns a registered model by name.
func (db *DB) Model(name string) (*Model, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.models[name]
	return m, ok
}

// Store exposes the underlying collection-scoped store for callers that
// need raw, schema-free access (tooling, migrations).
func (db *DB) Store() *store.Store {
	return db.store
}

// ListCollections returns all collection names in sorted order.
func (db *DB) ListCollections() []string {
	return db.store.ListCollections()
}

// Flush forces a durable write of all dirty collections.
func (db *DB) Flush() error {
	return db.store.Flush()
}

// modelProvider adapts the DB's registry to the resolver's Provider
// interface.
type modelProvider struct {
	db *DB
}

func (p modelProvider) Model(name string) (relation.Accessor, bool) {
	m, ok := p.db.Model(name)
	if !ok {
		return nil, false
	}
	return m, true
}
