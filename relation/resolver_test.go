package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/schema"
	"github.com/hupe1980/docgo/store"
)

type fakeModel struct {
	collection string
	relations  map[string]Definition
}

func (m fakeModel) Collection() string               { return m.collection }
func (m fakeModel) Relations() map[string]Definition { return m.relations }

type registry map[string]Accessor

func (r registry) Model(name string) (Accessor, bool) {
	a, ok := r[name]
	return a, ok
}

func newBlogStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for _, name := range []string{"users", "posts", "tags", "post_tags"} {
		require.NoError(t, s.CreateCollection(name, schema.Definition{}))
	}
	return s
}

func insert(t *testing.T, s *store.Store, collection string, doc document.Document) document.Document {
	t.Helper()

	if doc.ID() == "" {
		doc[document.FieldID] = document.NewID()
	}
	stored, err := s.Insert(collection, doc)
	require.NoError(t, err)
	return stored
}

func blogRegistry() registry {
	return registry{
		"User": fakeModel{
			collection: "users",
			relations: map[string]Definition{
				"posts":      {Kind: HasMany, Model: "Post", ForeignKey: "authorId"},
				"latestPost": {Kind: HasOne, Model: "Post", ForeignKey: "authorId"},
			},
		},
		"Post": fakeModel{
			collection: "posts",
			relations: map[string]Definition{
				"author": {Kind: BelongsTo, Model: "User", ForeignKey: "authorId"},
				"tags": {
					Kind:           ManyToMany,
					Model:          "Tag",
					ForeignKey:     "postId",
					JoinCollection: "post_tags",
					RelatedKey:     "tagId",
				},
			},
		},
		"Tag": fakeModel{collection: "tags"},
	}
}

func TestResolveHasMany(t *testing.T) {
	s := newBlogStore(t)
	r := NewResolver(s, blogRegistry())

	alice := insert(t, s, "users", document.Document{"name": "Alice"})
	bob := insert(t, s, "users", document.Document{"name": "Bob"})
	insert(t, s, "posts", document.Document{"title": "first", "authorId": alice.ID()})
	insert(t, s, "posts", document.Document{"title": "second", "authorId": alice.ID()})

	parents, err := s.Find("users", query.Options{})
	require.NoError(t, err)

	resolved, err := r.Resolve("User", parents, []string{"posts"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	byName := map[string]document.Document{}
	for _, doc := range resolved {
		byName[doc["name"].(string)] = doc
	}

	alicePosts := byName["Alice"]["posts"].([]document.Document)
	assert.Len(t, alicePosts, 2)

	// A parent with no children gets an empty array, never nil.
	bobPosts := byName["Bob"]["posts"].([]document.Document)
	assert.NotNil(t, bobPosts)
	assert.Empty(t, bobPosts)

	// The store's own documents are never mutated by resolution.
	raw, err := s.FindByID("users", bob.ID())
	require.NoError(t, err)
	assert.NotContains(t, raw, "posts")
}

func TestResolveHasOne(t *testing.T) {
	s := newBlogStore(t)
	r := NewResolver(s, blogRegistry())

	alice := insert(t, s, "users", document.Document{"name": "Alice"})
	insert(t, s, "users", document.Document{"name": "Bob"})
	insert(t, s, "posts", document.Document{"title": "first", "authorId": alice.ID()})
	insert(t, s, "posts", document.Document{"title": "second", "authorId": alice.ID()})

	parents, err := s.Find("users", query.Options{})
	require.NoError(t, err)

	resolved, err := r.Resolve("User", parents, []string{"latestPost"})
	require.NoError(t, err)

	byName := map[string]document.Document{}
	for _, doc := range resolved {
		byName[doc["name"].(string)] = doc
	}

	// With several children the first one in stored order is attached.
	post, ok := byName["Alice"]["latestPost"].(document.Document)
	require.True(t, ok)
	assert.Equal(t, "first", post["title"])

	assert.Nil(t, byName["Bob"]["latestPost"])
}

func TestResolveBelongsTo(t *testing.T) {
	s := newBlogStore(t)
	r := NewResolver(s, blogRegistry())

	alice := insert(t, s, "users", document.Document{"name": "Alice"})
	insert(t, s, "posts", document.Document{"title": "first", "authorId": alice.ID()})
	insert(t, s, "posts", document.Document{"title": "orphan"})

	parents, err := s.Find("posts", query.Options{})
	require.NoError(t, err)

	resolved, err := r.Resolve("Post", parents, []string{"author"})
	require.NoError(t, err)

	byTitle := map[string]document.Document{}
	for _, doc := range resolved {
		byTitle[doc["title"].(string)] = doc
	}

	author, ok := byTitle["first"]["author"].(document.Document)
	require.True(t, ok)
	assert.Equal(t, "Alice", author["name"])

	// A parent without a foreign-key value gets nil.
	assert.Nil(t, byTitle["orphan"]["author"])
}

func TestResolveManyToMany(t *testing.T) {
	s := newBlogStore(t)
	r := NewResolver(s, blogRegistry())

	post1 := insert(t, s, "posts", document.Document{"title": "first"})
	post2 := insert(t, s, "posts", document.Document{"title": "second"})
	golang := insert(t, s, "tags", document.Document{"name": "go"})
	db := insert(t, s, "tags", document.Document{"name": "databases"})

	require.NoError(t, r.Associate("Post", "tags", post1.ID(), golang.ID()))
	require.NoError(t, r.Associate("Post", "tags", post1.ID(), db.ID()))
	require.NoError(t, r.Associate("Post", "tags", post2.ID(), golang.ID()))

	tagNames := func(t *testing.T) map[string][]string {
		t.Helper()
		parents, err := s.Find("posts", query.Options{})
		require.NoError(t, err)
		resolved, err := r.Resolve("Post", parents, []string{"tags"})
		require.NoError(t, err)

		out := map[string][]string{}
		for _, doc := range resolved {
			names := []string{}
			for _, tag := range doc["tags"].([]document.Document) {
				names = append(names, tag["name"].(string))
			}
			out[doc["title"].(string)] = names
		}
		return out
	}

	names := tagNames(t)
	assert.ElementsMatch(t, []string{"go", "databases"}, names["first"])
	assert.ElementsMatch(t, []string{"go"}, names["second"])

	require.NoError(t, r.Dissociate("Post", "tags", post1.ID(), db.ID()))

	names = tagNames(t)
	assert.ElementsMatch(t, []string{"go"}, names["first"])
	assert.ElementsMatch(t, []string{"go"}, names["second"])
}

func TestResolveErrors(t *testing.T) {
	s := newBlogStore(t)
	r := NewResolver(s, blogRegistry())

	parents := []document.Document{{"id": "u1"}}

	_, err := r.Resolve("User", parents, []string{"nope"})
	var unknownErr *UnknownRelationError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "User", unknownErr.Model)
	assert.Equal(t, "nope", unknownErr.Relation)

	_, err = r.Resolve("Ghost", parents, []string{"posts"})
	var unregisteredErr *UnregisteredModelError
	require.ErrorAs(t, err, &unregisteredErr)
	assert.Equal(t, "Ghost", unregisteredErr.Model)

	// Relations pointing at a model that was never registered fail
	// explicitly instead of being skipped.
	reg := blogRegistry()
	delete(reg, "Post")
	_, err = NewResolver(s, reg).Resolve("User", parents, []string{"posts"})
	require.ErrorAs(t, err, &unregisteredErr)
	assert.Equal(t, "Post", unregisteredErr.Model)
}

func TestAssociateRequiresManyToMany(t *testing.T) {
	s := newBlogStore(t)
	r := NewResolver(s, blogRegistry())

	var cfgErr *ConfigError

	err := r.Associate("User", "posts", "u1", "p1")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "posts", cfgErr.Relation)

	err = r.Dissociate("User", "latestPost", "u1", "p1")
	assert.ErrorAs(t, err, &cfgErr)
}
