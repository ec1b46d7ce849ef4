package query

import (
	"sort"
	"strings"

	"github.com/hupe1980/docgo/document"
)

// Sort directions.
const (
	Ascending  = 1
	Descending = -1
)

// SortKey orders results by one field. Dir is Ascending (+1) or
// Descending (-1).
type SortKey struct {
	Field string
	Dir   int
}

// Options bundles the read-path parameters of a find call.
//
// The pipeline order is fixed: filter, then stable multi-key sort, then
// offset, then limit. Limit <= 0 means unlimited.
type Options struct {
	Filter Filter
	Sort   []SortKey
	Offset int
	Limit  int
}

// Apply runs the filter/sort/paginate pipeline over docs and returns the
// resulting sequence. The input slice is never mutated.
func (o Options) Apply(docs []document.Document) []document.Document {
	out := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if o.Filter.Matches(doc) {
			out = append(out, doc)
		}
	}

	if len(o.Sort) > 0 {
		keys := o.Sort
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range keys {
				dir := k.Dir
				if dir == 0 {
					dir = Ascending
				}
				cmp := compareForSort(out[i][k.Field], out[j][k.Field]) * dir
				if cmp != 0 {
					return cmp < 0
				}
			}
			return false
		})
	}

	if o.Offset > 0 {
		if o.Offset >= len(out) {
			return out[:0]
		}
		out = out[o.Offset:]
	}
	if o.Limit > 0 && o.Limit < len(out) {
		out = out[:o.Limit]
	}
	return out
}

// Count returns the number of documents matching the filter without
// materializing the result set.
func Count(docs []document.Document, f Filter) int {
	n := 0
	for _, doc := range docs {
		if f.Matches(doc) {
			n++
		}
	}
	return n
}

// compareForSort orders two field values for sorting. Missing and null
// values sort after any present value (before direction is applied), so they
// land last ascending and first descending. Mixed-type pairs fall back to a
// deterministic canonical-key ordering.
func compareForSort(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	if fa, aok := document.Numeric(a); aok {
		if fb, bok := document.Numeric(b); bok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if sa, aok := a.(string); aok {
		if sb, bok := b.(string); bok {
			return strings.Compare(sa, sb)
		}
	}
	return strings.Compare(document.Key(a), document.Key(b))
}
