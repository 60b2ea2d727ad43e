package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/document"
	"github.com/seedloom/seedloom/internal/engine"
	"github.com/seedloom/seedloom/internal/testutil"
)

func parseTestDoc(t *testing.T, src string) document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

func storeCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		&catalog.Entity{
			Name:   "accounts.User",
			Fields: map[string]string{"name": "string", "email": "string"},
		},
		&catalog.Entity{
			Name:   "shop.Category",
			Fields: map[string]string{"name": "string"},
			Relations: map[string]catalog.Relation{
				"parent": {Kind: catalog.KindForward, Target: "shop.Category"},
			},
		},
		&catalog.Entity{
			Name:   "shop.Product",
			Fields: map[string]string{"title": "string", "price": "float", "meta": "json"},
			Relations: map[string]catalog.Relation{
				"category": {Kind: catalog.KindForward, Target: "shop.Category"},
				"tags":     {Kind: catalog.KindManyToMany, Target: "shop.Tag"},
				"contributors": {
					Kind: catalog.KindManyToMany, Target: "accounts.User",
					Through: "shop.Contribution", ThroughFields: []string{"role"},
				},
			},
		},
		&catalog.Entity{
			Name:   "shop.Tag",
			Fields: map[string]string{"name": "string"},
		},
		&catalog.Entity{
			Name:   "shop.Contribution",
			Fields: map[string]string{"role": "string"},
			Relations: map[string]catalog.Relation{
				"product": {Kind: catalog.KindForward, Target: "shop.Product"},
				"user":    {Kind: catalog.KindForward, Target: "accounts.User"},
			},
		},
	)
	require.NoError(t, err)
	return cat
}

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.db")
	s, err := Open(path, storeCatalog(t),
		WithIdentityGenerator(testutil.NewSequenceIdentities("rec")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.db")
	cat := storeCatalog(t)

	s1, err := Open(path, cat)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, cat)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestSchemaDDLShape(t *testing.T) {
	stmts := schemaDDL(storeCatalog(t))
	ddl := strings.Join(stmts, ";\n")

	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS shop_category")
	require.Contains(t, ddl, "id TEXT PRIMARY KEY")
	require.Contains(t, ddl, "price REAL")
	require.Contains(t, ddl, "meta TEXT")
	require.Contains(t, ddl, "category TEXT REFERENCES shop_category(id)")
	// Plain many-to-many gets its own join table; through relations reuse
	// the join entity's table.
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS shop_product_tags")
	require.NotContains(t, ddl, "shop_product_contributors")
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS shop_contribution")
}

func TestJoinSpecs(t *testing.T) {
	specs, err := buildJoinSpecs(storeCatalog(t))
	require.NoError(t, err)

	tags := specs["shop.Product.tags"]
	require.Equal(t, "shop_product_tags", tags.table)
	require.False(t, tags.withID)

	contribs := specs["shop.Product.contributors"]
	require.Equal(t, "shop_contribution", contribs.table)
	require.Equal(t, "product", contribs.ownerCol)
	require.Equal(t, "user", contribs.targetCol)
	require.True(t, contribs.withID)
}

func TestCreateAndLookup(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	id, err := tx.Create(ctx, "shop.Tag", map[string]any{"name": "fiction"})
	require.NoError(t, err)
	require.Equal(t, "rec-1", id)

	got, err := tx.Lookup(ctx, "shop.Tag", map[string]any{"name": "fiction"})
	require.NoError(t, err)
	require.Equal(t, id, got)

	// pk addresses the id column.
	got, err = tx.Lookup(ctx, "shop.Tag", map[string]any{"pk": id})
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = tx.Lookup(ctx, "shop.Tag", map[string]any{"name": "missing"})
	require.True(t, errors.Is(err, engine.ErrLookupNotFound))

	require.NoError(t, tx.Commit())

	n, err := s.Count(ctx, "shop.Tag")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestLookupAmbiguous(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Create(ctx, "shop.Tag", map[string]any{"name": "dup"})
	require.NoError(t, err)
	_, err = tx.Create(ctx, "shop.Tag", map[string]any{"name": "dup"})
	require.NoError(t, err)

	_, err = tx.Lookup(ctx, "shop.Tag", map[string]any{"name": "dup"})
	require.True(t, errors.Is(err, engine.ErrLookupAmbiguous))
	require.NoError(t, tx.Rollback())
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Create(ctx, "shop.Tag", map[string]any{"name": "gone"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	n, err := s.Count(ctx, "shop.Tag")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAssociatePlainAndAttributed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	product, err := tx.Create(ctx, "shop.Product", map[string]any{"title": "SICP"})
	require.NoError(t, err)
	tag, err := tx.Create(ctx, "shop.Tag", map[string]any{"name": "classic"})
	require.NoError(t, err)
	user, err := tx.Create(ctx, "accounts.User", map[string]any{"name": "Alice"})
	require.NoError(t, err)

	require.NoError(t, tx.Associate(ctx, "shop.Product", product, "tags", tag))
	// Duplicate plain links collapse.
	require.NoError(t, tx.Associate(ctx, "shop.Product", product, "tags", tag))

	require.NoError(t, tx.AssociateWithAttributes(ctx,
		"shop.Product", product, "contributors", user, map[string]any{"role": "author"}))

	require.NoError(t, tx.Commit())

	var links int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM shop_product_tags").Scan(&links))
	require.Equal(t, 1, links)

	var role string
	require.NoError(t, s.DB().QueryRow(
		"SELECT role FROM shop_contribution WHERE product = ? AND user = ?",
		product, user).Scan(&role))
	require.Equal(t, "author", role)
}

func TestAssociateUnknownRelation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.Associate(ctx, "shop.Product", "x", "nope", "y")
	require.Error(t, err)
}

func TestEngineLoadIntoSQLite(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	doc := parseTestDoc(t, `
shop:
  Category:
    - $ref: books
      name: Books
  Product:
    - $ref: sicp
      title: SICP
      category: $books
      tags:
        - $fiction
  Tag:
    - $ref: fiction
      name: Fiction
`)

	loader := engine.New(storeCatalog(t), s)
	result, err := loader.Load(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, 3, result.Total())
	require.Equal(t, 1, result.Associations)

	var category string
	require.NoError(t, s.DB().QueryRow(
		"SELECT category FROM shop_product WHERE title = 'SICP'").Scan(&category))

	var name string
	require.NoError(t, s.DB().QueryRow(
		"SELECT name FROM shop_category WHERE id = ?", category).Scan(&name))
	require.Equal(t, "Books", name)
}

func TestEngineRollbackLeavesDatabaseEmpty(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	doc := parseTestDoc(t, `
shop:
  Category:
    - $ref: books
      name: Books
  Product:
    - $ref: sicp
      title: SICP
      category: '@name:Missing'
`)

	loader := engine.New(storeCatalog(t), s)
	_, err := loader.Load(ctx, doc)
	require.Equal(t, engine.ErrCodeLookupNotFound, engine.CodeOf(err))

	n, err := s.Count(ctx, "shop.Category")
	require.NoError(t, err)
	require.Zero(t, n)
}
