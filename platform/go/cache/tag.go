package cache

import "fmt"

// GlobalPrefixes is the fixed allow-list of logical resource prefixes whose
// cached data is shared by every tenant. Anything else is scoped per company.
type GlobalPrefixes map[string]struct{}

// NewGlobalPrefixes builds the allow-list from literal prefixes.
func NewGlobalPrefixes(prefixes ...string) GlobalPrefixes {
	set := make(GlobalPrefixes, len(prefixes))
	for _, p := range prefixes {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports membership in the allow-list.
func (g GlobalPrefixes) Contains(prefix string) bool {
	_, ok := g[prefix]
	return ok
}

// Tag derives the invalidation tag for a logical resource prefix. Global
// prefixes map to themselves; everything else gets the company suffix so a
// tenant can only ever invalidate its own entries. The company id must come
// from the resolved principal, never from client input.
func Tag(prefix string, companyID int64, global GlobalPrefixes) string {
	if global.Contains(prefix) {
		return prefix
	}
	return fmt.Sprintf("%s-%d", prefix, companyID)
}
