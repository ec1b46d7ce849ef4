// Package document defines the document representation shared by the store,
// the filter engine and the indexer.
package document

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Reserved field names present on every stored document.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeLayout is the canonical ISO-8601 timestamp form used for createdAt,
// updatedAt and coerced date fields. Millisecond precision, always UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Document is a single record of a collection: free-form fields plus the
// reserved id/createdAt/updatedAt fields.
//
// Values follow JSON semantics (string, float64, bool, nil, []any,
// map[string]any) because documents round-trip through collection files.
type Document map[string]any

// ID returns the document id, or "" if unset.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Clone returns a shallow copy of the document.
//
// Read paths hand out clones so callers (and the relation resolver) can
// attach fields without mutating the store's own arrays.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	maps.Copy(out, d)
	return out
}

// NewID returns a fresh globally unique document id.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in the canonical timestamp form.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// FormatTime converts t to the canonical timestamp form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
