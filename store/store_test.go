package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/schema"
)

var userSchema = schema.Definition{
	"name":  {Type: schema.FieldTypeString, Required: true},
	"email": {Type: schema.FieldTypeString, Unique: true},
	"age":   {Type: schema.FieldTypeNumber},
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.CreateCollection("users", userSchema))
	return s
}

func insertUser(t *testing.T, s *Store, name, email string, age float64) document.Document {
	t.Helper()

	doc, err := s.Insert("users", document.Document{
		"id":    document.NewID(),
		"name":  name,
		"email": email,
		"age":   age,
	})
	require.NoError(t, err)
	return doc
}

func TestStoreInsertAndFindByID(t *testing.T) {
	s := newTestStore(t)

	alice := insertUser(t, s, "Alice", "alice@example.com", 30)

	found, err := s.FindByID("users", alice.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Alice", found["name"])

	missing, err := s.FindByID("users", "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreUnknownCollection(t *testing.T) {
	s := newTestStore(t)

	var cnfErr *CollectionNotFoundError

	_, err := s.Insert("ghosts", document.Document{"id": "g1"})
	require.ErrorAs(t, err, &cnfErr)
	assert.Equal(t, "ghosts", cnfErr.Collection)

	_, err = s.Find("ghosts", query.Options{})
	assert.ErrorAs(t, err, &cnfErr)
	_, err = s.Count("ghosts", nil)
	assert.ErrorAs(t, err, &cnfErr)
	_, err = s.Update("ghosts", "g1", document.Document{})
	assert.ErrorAs(t, err, &cnfErr)
	_, err = s.Delete("ghosts", "g1")
	assert.ErrorAs(t, err, &cnfErr)
}

func TestStoreUniqueConstraint(t *testing.T) {
	s := newTestStore(t)

	insertUser(t, s, "Alice", "alice@example.com", 30)

	_, err := s.Insert("users", document.Document{
		"id":    document.NewID(),
		"name":  "Impostor",
		"email": "alice@example.com",
	})

	var uniqueErr *index.UniqueConstraintError
	require.ErrorAs(t, err, &uniqueErr)
	assert.Equal(t, "email", uniqueErr.Field)

	n, err := s.Count("users", query.Eq("email", "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed insert must not leave a document behind")
}

func TestStorePartialUpdate(t *testing.T) {
	s := newTestStore(t)

	alice := insertUser(t, s, "Alice", "alice@example.com", 30)

	updated, err := s.Update("users", alice.ID(), document.Document{"age": 31})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 31, updated["age"])
	assert.Equal(t, "Alice", updated["name"], "untouched fields survive a partial update")

	// The id is immutable even when the partial data carries one.
	updated, err = s.Update("users", alice.ID(), document.Document{"id": "hijacked", "age": 32})
	require.NoError(t, err)
	assert.Equal(t, alice.ID(), updated.ID())

	// Updating an absent id is a no-op returning nil.
	gone, err := s.Update("users", "no-such-id", document.Document{"age": 99})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStoreUpdateUniqueCollision(t *testing.T) {
	s := newTestStore(t)

	insertUser(t, s, "Alice", "alice@example.com", 30)
	bob := insertUser(t, s, "Bob", "bob@example.com", 40)

	_, err := s.Update("users", bob.ID(), document.Document{"email": "alice@example.com"})

	var uniqueErr *index.UniqueConstraintError
	require.ErrorAs(t, err, &uniqueErr)

	// Both documents keep their original values.
	kept, err := s.FindByID("users", bob.ID())
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", kept["email"])

	n, err := s.Count("users", query.Eq("email", "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	alice := insertUser(t, s, "Alice", "alice@example.com", 30)

	removed, err := s.Delete("users", alice.ID())
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete("users", alice.ID())
	require.NoError(t, err)
	assert.False(t, removed)

	// The unique value is free again after the delete.
	insertUser(t, s, "Alice II", "alice@example.com", 31)
}

func TestStoreDeleteMany(t *testing.T) {
	s := newTestStore(t)

	insertUser(t, s, "Alice", "alice@example.com", 30)
	insertUser(t, s, "Bob", "bob@example.com", 42)
	insertUser(t, s, "Carol", "carol@example.com", 45)

	n, err := s.DeleteMany("users", query.Where("age", query.OpGreaterThan, 40))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := s.Find("users", query.Options{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "Alice", left[0]["name"])

	n, err = s.DeleteMany("users", query.Eq("name", "nobody"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStoreCountMatchesFind(t *testing.T) {
	s := newTestStore(t)

	insertUser(t, s, "Alice", "alice@example.com", 30)
	insertUser(t, s, "Bob", "bob@example.com", 42)
	insertUser(t, s, "Carol", "carol@example.com", 45)

	filter := query.Where("age", query.OpGreaterEqual, 42)

	docs, err := s.Find("users", query.Options{Filter: filter})
	require.NoError(t, err)
	n, err := s.Count("users", filter)
	require.NoError(t, err)
	assert.Equal(t, len(docs), n)
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, s.CreateCollection("users", userSchema))

	alice, err := s.Insert("users", document.Document{
		"id":    document.NewID(),
		"name":  "Alice",
		"email": "alice@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.CreateCollection("users", userSchema))

	n, err := reopened.Count("users", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	found, err := reopened.FindByID("users", alice.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Alice", found["name"])

	// The rebuilt unique index still guards the email field.
	_, err = reopened.Insert("users", document.Document{
		"id":    document.NewID(),
		"email": "alice@example.com",
	})
	var uniqueErr *index.UniqueConstraintError
	assert.ErrorAs(t, err, &uniqueErr)
}

func TestStoreDropCollection(t *testing.T) {
	s := newTestStore(t)

	insertUser(t, s, "Alice", "alice@example.com", 30)
	require.NoError(t, s.DropCollection("users"))

	assert.NotContains(t, s.ListCollections(), "users")

	var cnfErr *CollectionNotFoundError
	_, err := s.Count("users", nil)
	assert.ErrorAs(t, err, &cnfErr)
}
