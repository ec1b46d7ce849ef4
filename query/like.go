package query

import (
	"regexp"
	"strings"
	"sync"
)

// likeCache caches compiled $like patterns. Filters are often re-evaluated
// per document, so compiling once per pattern matters on large collections.
var likeCache sync.Map // pattern string -> *regexp.Regexp

// matchLike reports whether value matches the SQL-style pattern: '%' matches
// any run of characters, '_' matches exactly one. Matching is
// case-insensitive and anchored to the whole value.
func matchLike(pattern, value string) bool {
	if re, ok := likeCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(value)
	}
	re, err := regexp.Compile(likeToRegexp(pattern))
	if err != nil {
		// Cannot happen for QuoteMeta'd input; fail closed if it ever does.
		return false
	}
	likeCache.Store(pattern, re)
	return re.MatchString(value)
}

func likeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString(`(?is)\A`)
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(`.*`)
		case '_':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`\z`)
	return sb.String()
}
