package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingTx implements just enough of Tx to drive the cache.
type countingTx struct {
	Tx
	calls int
	id    string
	err   error
}

func (t *countingTx) Lookup(ctx context.Context, entityType string, predicate map[string]any) (string, error) {
	t.calls++
	return t.id, t.err
}

func TestLookupCacheMemoizesHits(t *testing.T) {
	tx := &countingTx{id: "id-7"}
	cache := NewLookupCache()
	ctx := context.Background()

	for range 3 {
		id, err := cache.Resolve(ctx, tx, "shop.Tag", map[string]any{"name": "fiction"})
		require.NoError(t, err)
		require.Equal(t, "id-7", id)
	}
	require.Equal(t, 1, tx.calls)
	require.Equal(t, 1, cache.Misses())
}

func TestLookupCacheMemoizesErrors(t *testing.T) {
	tx := &countingTx{err: ErrLookupNotFound}
	cache := NewLookupCache()
	ctx := context.Background()

	for range 3 {
		_, err := cache.Resolve(ctx, tx, "shop.Tag", map[string]any{"name": "missing"})
		require.True(t, errors.Is(err, ErrLookupNotFound))
	}
	// Not-found is a tombstone, not a retry.
	require.Equal(t, 1, tx.calls)
}

func TestLookupCacheDistinctPredicates(t *testing.T) {
	tx := &countingTx{id: "id-1"}
	cache := NewLookupCache()
	ctx := context.Background()

	_, err := cache.Resolve(ctx, tx, "shop.Tag", map[string]any{"name": "a"})
	require.NoError(t, err)
	_, err = cache.Resolve(ctx, tx, "shop.Tag", map[string]any{"name": "b"})
	require.NoError(t, err)
	_, err = cache.Resolve(ctx, tx, "shop.Category", map[string]any{"name": "a"})
	require.NoError(t, err)

	require.Equal(t, 3, tx.calls)

	// Equal predicate in a different declaration order is still one entry.
	_, err = cache.Resolve(ctx, tx, "shop.Tag", map[string]any{"name": "a"})
	require.NoError(t, err)
	require.Equal(t, 3, tx.calls)
}
