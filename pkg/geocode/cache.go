package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery canonicalizes a query for cache lookup: NFKC, case folded,
// whitespace collapsed, spaces before commas removed.
func NormalizeQuery(query string) string {
	q := norm.NFKC.String(query)
	q = cases.Fold().String(q)
	q = strings.Join(strings.Fields(q), " ")
	return strings.ReplaceAll(q, " ,", ",")
}

// CacheKey returns the SHA-256 hex of the normalized query.
func CacheKey(query string) string {
	h := sha256.Sum256([]byte(NormalizeQuery(query)))
	return fmt.Sprintf("%x", h)
}
