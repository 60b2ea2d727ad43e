package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seedloom/seedloom/internal/document"
	. "github.com/seedloom/seedloom/internal/engine"
	"github.com/seedloom/seedloom/internal/testutil"
)

func loadDoc(t *testing.T, store *testutil.MemStore, src string, opts ...Option) (*Result, error) {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	require.NoError(t, err)
	loader := New(TestCatalog(t), store, opts...)
	return loader.Load(context.Background(), doc)
}

func TestLoaderEndToEnd(t *testing.T) {
	store := testutil.NewMemStore()
	result, err := loadDoc(t, store, `
accounts:
  User:
    - $ref: alice
      name: Alice
      profile:
        bio: hello
shop:
  Category:
    - $ref: books
      name: Books
    - name: Music
      parent: $books
  Product:
    - $ref: sicp
      title: SICP
      category: $books
      tags:
        - $fiction
        - name: lisp
  Tag:
    - $ref: fiction
      name: Fiction
`)
	require.NoError(t, err)

	require.Equal(t, map[string]int{
		"accounts.Profile": 1,
		"accounts.User":    1,
		"shop.Category":    2,
		"shop.Product":     1,
		"shop.Tag":         2,
	}, result.Created)
	require.Equal(t, 7, result.Total())
	require.Equal(t, 2, result.Associations)
	require.Equal(t, 1, store.Commits)
	require.Zero(t, store.Rollbacks)

	// References resolved to the identities of earlier creations.
	alice, ok := store.Row("accounts.User", "id-2")
	require.True(t, ok)
	require.Equal(t, "id-1", alice.Fields["profile"])

	music, ok := store.Row("shop.Category", "id-4")
	require.True(t, ok)
	require.Equal(t, "id-3", music.Fields["parent"])

	sicp, ok := store.Row("shop.Product", "id-5")
	require.True(t, ok)
	require.Equal(t, "id-3", sicp.Fields["category"])

	// Associations follow element declaration order.
	assocs := store.Associations()
	require.Len(t, assocs, 2)
	require.Equal(t, "id-7", assocs[0].TargetID)
	require.Equal(t, "id-6", assocs[1].TargetID)
	for _, a := range assocs {
		require.Equal(t, "shop.Product", a.OwnerType)
		require.Equal(t, "id-5", a.OwnerID)
		require.Equal(t, "tags", a.Relation)
	}
}

func TestLoaderAttributedAssociation(t *testing.T) {
	store := testutil.NewMemStore()
	store.Seed("accounts.User", "u-1", map[string]any{"email": "bob@example.com"})

	result, err := loadDoc(t, store, `
accounts:
  User:
    - $ref: alice
      name: Alice
shop:
  Product:
    - $ref: sicp
      title: SICP
      contributors:
        - user: $alice
          role: author
        - user: '@email:bob@example.com'
          role: editor
`)
	require.NoError(t, err)
	require.Equal(t, 2, result.Associations)

	assocs := store.Associations()
	require.Len(t, assocs, 2)
	require.Equal(t, map[string]any{"role": "author"}, assocs[0].Attrs)
	require.Equal(t, "u-1", assocs[1].TargetID)
	require.Equal(t, map[string]any{"role": "editor"}, assocs[1].Attrs)
}

func TestLoaderRollsBackOnCreateFailure(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailCreateType = "shop.Product"

	_, err := loadDoc(t, store, `
shop:
  Category:
    - $ref: books
      name: Books
      products:
        - title: doomed
`)
	require.Equal(t, ErrCodeStorage, CodeOf(err))
	require.Equal(t, 1, store.Rollbacks)
	require.Zero(t, store.Commits)
	// Nothing survives the rollback, not even the earlier category.
	require.Zero(t, store.CreatedCount())
}

func TestLoaderRollsBackOnAssociateFailure(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailAssociate = true

	_, err := loadDoc(t, store, `
shop:
  Product:
    - $ref: sicp
      tags:
        - $fiction
  Tag:
    - $ref: fiction
      name: Fiction
`)
	require.Equal(t, ErrCodeStorage, CodeOf(err))
	require.Equal(t, 1, store.Rollbacks)
	require.Zero(t, store.CreatedCount())
}

func TestLoaderLookupNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	_, err := loadDoc(t, store, `
shop:
  Product:
    - $ref: p
      category: '@name:Missing'
`)
	require.Equal(t, ErrCodeLookupNotFound, CodeOf(err))
	require.Equal(t, 1, store.Rollbacks)
}

func TestLoaderAmbiguousLookupAborts(t *testing.T) {
	store := testutil.NewMemStore()
	store.Seed("shop.Category", "c-1", map[string]any{"name": "Books"})
	store.Seed("shop.Category", "c-2", map[string]any{"name": "Books"})

	_, err := loadDoc(t, store, `
shop:
  Product:
    - $ref: p
      category: '@name:Books'
`)
	require.Equal(t, ErrCodeAmbiguousLookup, CodeOf(err))
	require.Equal(t, 1, store.Rollbacks)
	require.Zero(t, store.CreatedCount())
}

func TestLoaderMemoizesRepeatedLookups(t *testing.T) {
	store := testutil.NewMemStore()
	store.Seed("shop.Category", "c-1", map[string]any{"name": "Books"})

	_, err := loadDoc(t, store, `
shop:
  Product:
    - title: first
      category: '@name:Books'
    - title: second
      category: '@name:Books'
    - title: third
      category: '@name:Books'
`)
	require.NoError(t, err)
	require.Equal(t, 1, store.LookupCalls)
}

func TestLoaderPlanIsDryRun(t *testing.T) {
	store := testutil.NewMemStore()
	doc, err := document.Parse([]byte(`
shop:
  Category:
    - $ref: books
      name: Books
`))
	require.NoError(t, err)

	loader := New(TestCatalog(t), store)
	plan, err := loader.Plan(doc)
	require.NoError(t, err)
	require.Len(t, plan.Order, 1)
	require.Empty(t, store.Calls)
}

func TestLoaderStructuralErrorBeforeStoreAccess(t *testing.T) {
	store := testutil.NewMemStore()
	_, err := loadDoc(t, store, `
shop:
  Category:
    - $ref: music
      parent: $missing
`)
	require.Equal(t, ErrCodeUnknownReference, CodeOf(err))
	require.Empty(t, store.Calls)
}

func TestLoaderCallOrder(t *testing.T) {
	store := testutil.NewMemStore()
	_, err := loadDoc(t, store, `
shop:
  Product:
    - $ref: sicp
      tags:
        - $fiction
  Tag:
    - $ref: fiction
      name: Fiction
`)
	require.NoError(t, err)
	require.Equal(t, []string{
		"begin",
		"create shop.Product",
		"create shop.Tag",
		"associate shop.Product.tags",
		"commit",
	}, store.Calls)
}

func TestLoaderCustomRefKeyField(t *testing.T) {
	store := testutil.NewMemStore()
	result, err := loadDoc(t, store, `
shop:
  Tag:
    - _key: fiction
      name: Fiction
`, WithRefKeyField("_key"))
	require.NoError(t, err)
	require.Equal(t, 1, result.Total())

	row, ok := store.Row("shop.Tag", "id-1")
	require.True(t, ok)
	// The key marker never reaches the store as a field.
	require.Equal(t, map[string]any{"name": "Fiction"}, row.Fields)
}
