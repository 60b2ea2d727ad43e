package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReferenceTableRegisterAndResolve(t *testing.T) {
	table := NewReferenceTable()
	node := &EntityNode{Type: "shop.Tag", Key: "fiction"}

	require.NoError(t, table.Register(node))
	require.Equal(t, 1, table.Len())
	require.True(t, table.Exists("fiction"))

	got, ok := table.Node("fiction")
	require.True(t, ok)
	require.Same(t, node, got)

	// Unresolved entries expose no identity.
	_, ok = table.Identity("fiction")
	require.False(t, ok)

	require.NoError(t, table.Resolve("fiction", "id-1"))
	id, ok := table.Identity("fiction")
	require.True(t, ok)
	require.Equal(t, "id-1", id)
}

func TestReferenceTableDuplicateKey(t *testing.T) {
	table := NewReferenceTable()
	require.NoError(t, table.Register(&EntityNode{Type: "shop.Tag", Key: "fiction"}))

	// Keys share one namespace across types.
	err := table.Register(&EntityNode{Type: "shop.Category", Key: "fiction"})
	require.Error(t, err)
	require.Equal(t, ErrCodeDuplicateReferenceKey, CodeOf(err))
}

func TestReferenceTableResolveInvariants(t *testing.T) {
	table := NewReferenceTable()
	require.NoError(t, table.Register(&EntityNode{Type: "shop.Tag", Key: "fiction"}))

	err := table.Resolve("unknown", "id-1")
	require.Equal(t, ErrCodeInternal, CodeOf(err))

	require.NoError(t, table.Resolve("fiction", "id-1"))
	err = table.Resolve("fiction", "id-2")
	require.Equal(t, ErrCodeInternal, CodeOf(err))

	// The first resolution sticks.
	id, ok := table.Identity("fiction")
	require.True(t, ok)
	require.Equal(t, "id-1", id)
}

func TestReferenceTableUnknownKey(t *testing.T) {
	table := NewReferenceTable()
	require.False(t, table.Exists("missing"))
	_, ok := table.Node("missing")
	require.False(t, ok)
	_, ok = table.Identity("missing")
	require.False(t, ok)
}
