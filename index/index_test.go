package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/document"
)

func newUserIndex(t *testing.T, docs []document.Document) *Collection {
	t.Helper()
	c := NewCollection("users")
	require.NoError(t, c.SetupIndex("email", true, docs))
	require.NoError(t, c.SetupIndex("city", false, docs))
	return c
}

func TestSetupIndexFromSnapshot(t *testing.T) {
	docs := []document.Document{
		{"id": "u1", "email": "a@x.io", "city": "berlin"},
		{"id": "u2", "email": "b@x.io", "city": "berlin"},
	}
	c := newUserIndex(t, docs)

	ids, ok := c.FindByValue("city", "berlin")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)

	ids, ok = c.FindByValue("email", "a@x.io")
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, ids)

	_, ok = c.FindByValue("name", "anything")
	assert.False(t, ok, "unindexed field")
}

func TestSetupIndexDetectsExistingDuplicate(t *testing.T) {
	docs := []document.Document{
		{"id": "u1", "email": "dup@x.io"},
		{"id": "u2", "email": "dup@x.io"},
	}
	c := NewCollection("users")
	err := c.SetupIndex("email", true, docs)

	var uerr *UniqueConstraintError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "users", uerr.Collection)
	assert.Equal(t, "email", uerr.Field)
}

func TestOnInsertUniqueViolationLeavesIndexUntouched(t *testing.T) {
	c := newUserIndex(t, []document.Document{
		{"id": "u1", "email": "a@x.io", "city": "berlin"},
	})

	err := c.OnInsert(document.Document{"id": "u2", "email": "a@x.io", "city": "hamburg"})
	var uerr *UniqueConstraintError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "a@x.io", uerr.Value)

	// The failed insert must not have touched the non-unique index either.
	ids, _ := c.FindByValue("city", "hamburg")
	assert.Empty(t, ids)
	ids, _ = c.FindByValue("email", "a@x.io")
	assert.Equal(t, []string{"u1"}, ids)
}

func TestOnUpdateMovesPostings(t *testing.T) {
	oldDoc := document.Document{"id": "u1", "email": "a@x.io", "city": "berlin"}
	c := newUserIndex(t, []document.Document{oldDoc})

	newDoc := document.Document{"id": "u1", "email": "a@x.io", "city": "hamburg"}
	require.NoError(t, c.OnUpdate(oldDoc, newDoc))

	ids, _ := c.FindByValue("city", "berlin")
	assert.Empty(t, ids)
	ids, _ = c.FindByValue("city", "hamburg")
	assert.Equal(t, []string{"u1"}, ids)
}

func TestOnUpdateUniqueViolationFailsBeforeMutation(t *testing.T) {
	d1 := document.Document{"id": "u1", "email": "a@x.io", "city": "berlin"}
	d2 := document.Document{"id": "u2", "email": "b@x.io", "city": "berlin"}
	c := newUserIndex(t, []document.Document{d1, d2})

	patched := document.Document{"id": "u2", "email": "a@x.io", "city": "hamburg"}
	err := c.OnUpdate(d2, patched)
	var uerr *UniqueConstraintError
	require.ErrorAs(t, err, &uerr)

	// Nothing moved: city postings are as before.
	ids, _ := c.FindByValue("city", "berlin")
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)
	ids, _ = c.FindByValue("email", "b@x.io")
	assert.Equal(t, []string{"u2"}, ids)
}

func TestOnUpdateKeepingValueIsNoViolation(t *testing.T) {
	d1 := document.Document{"id": "u1", "email": "a@x.io", "city": "berlin"}
	c := newUserIndex(t, []document.Document{d1})

	patched := document.Document{"id": "u1", "email": "a@x.io", "city": "munich"}
	assert.NoError(t, c.OnUpdate(d1, patched))
}

func TestOnDelete(t *testing.T) {
	d1 := document.Document{"id": "u1", "email": "a@x.io", "city": "berlin"}
	c := newUserIndex(t, []document.Document{d1})

	c.OnDelete(d1)

	ids, _ := c.FindByValue("email", "a@x.io")
	assert.Empty(t, ids)

	// The freed value is usable again.
	assert.NoError(t, c.OnInsert(document.Document{"id": "u2", "email": "a@x.io"}))
}

func TestNumericKeysSurviveReloadKinds(t *testing.T) {
	// An int indexed before a flush and the float64 the codec yields after a
	// reload must share a posting list.
	c := NewCollection("orders")
	require.NoError(t, c.SetupIndex("qty", false, nil))
	require.NoError(t, c.OnInsert(document.Document{"id": "o1", "qty": 5}))

	ids, _ := c.FindByValue("qty", float64(5))
	assert.Equal(t, []string{"o1"}, ids)
}
