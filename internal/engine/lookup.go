package engine

import "context"

// LookupCache memoizes external-store lookups within one load invocation.
//
// Entries hold either a resolved identity or the error the store returned
// (a not-found tombstone is an error entry too) - identical (type,
// predicate) pairs hit the store exactly once per run. The cache is owned
// by one Loader and never survives the invocation: a shared cache could
// leak identities from a rolled-back run into a later one.
type LookupCache struct {
	entries map[string]lookupEntry
	// misses counts actual store queries, for observability and tests.
	misses int
}

type lookupEntry struct {
	identity string
	err      error
}

// NewLookupCache creates an empty lookup cache.
func NewLookupCache() *LookupCache {
	return &LookupCache{entries: make(map[string]lookupEntry)}
}

// Resolve returns the identity for (entityType, predicate), querying tx on
// the first occurrence and replaying the memoized outcome afterwards.
func (c *LookupCache) Resolve(ctx context.Context, tx Tx, entityType string, predicate map[string]any) (string, error) {
	key := canonicalPredicate(entityType, predicate)
	if e, ok := c.entries[key]; ok {
		return e.identity, e.err
	}

	c.misses++
	identity, err := tx.Lookup(ctx, entityType, predicate)
	c.entries[key] = lookupEntry{identity: identity, err: err}
	return identity, err
}

// Misses returns the number of lookups that reached the store.
func (c *LookupCache) Misses() int {
	return c.misses
}
