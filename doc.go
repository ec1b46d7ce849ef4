// Package docgo provides an embedded document database for Go.
//
// Docgo stores JSON documents in named collections backed by plain files,
// one file per collection, replaced atomically on every write. Collections
// carry a schema (types, required/unique/indexed fields, defaults, bounds),
// documents are queried with a MongoDB-style operator grammar, and models
// can declare relationships that are resolved eagerly with batched lookups.
//
// # Quick Start
//
//	db, _ := docgo.Open("./data")
//	defer db.Close()
//
//	users, _ := db.RegisterModel("User", "users", schema.Definition{
//	    "name":  {Type: schema.FieldTypeString, Required: true},
//	    "email": {Type: schema.FieldTypeString, Unique: true},
//	    "age":   {Type: schema.FieldTypeNumber},
//	}, nil)
//
//	alice, _ := users.Create(document.Document{
//	    "name":  "Alice",
//	    "email": "alice@example.com",
//	    "age":   30,
//	})
//
//	adults, _ := users.Find(query.Options{
//	    Filter: query.Where("age", query.OpGreaterEqual, 18),
//	    Sort:   []query.SortKey{{Field: "age", Dir: query.Ascending}},
//	})
//
// # Relations
//
//	posts, _ := db.RegisterModel("Post", "posts", postSchema, map[string]relation.Definition{
//	    "author": {Kind: relation.BelongsTo, Model: "User", ForeignKey: "authorId"},
//	    "tags": {
//	        Kind:           relation.ManyToMany,
//	        Model:          "Tag",
//	        ForeignKey:     "postId",
//	        JoinCollection: "post_tags",
//	        RelatedKey:     "tagId",
//	    },
//	})
//
//	withTags, _ := posts.Find(query.Options{}, "tags")
//
// # Durability Model
//
// Every successful mutation is durable on return: the collection file has
// been rewritten via write-temp-then-rename, so readers only ever observe
// a fully written previous or new version. All writes of one database go
// through a single writer, preserving operation order on disk. There is no
// multi-document atomicity and no support for concurrent processes sharing
// the same data directory.
package docgo
