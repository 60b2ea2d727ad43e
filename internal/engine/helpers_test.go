package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/document"
)

// testCatalog builds the shop/accounts model shared by the engine tests:
// forward references, a self-referencing forward, a reverse collection, a
// plain many-to-many and an attributed many-to-many through a join type.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		&catalog.Entity{
			Name:   "accounts.User",
			Fields: map[string]string{"name": "string", "email": "string"},
			Relations: map[string]catalog.Relation{
				"profile": {Kind: catalog.KindForward, Target: "accounts.Profile"},
			},
		},
		&catalog.Entity{
			Name:   "accounts.Profile",
			Fields: map[string]string{"bio": "string"},
		},
		&catalog.Entity{
			Name:   "shop.Category",
			Fields: map[string]string{"name": "string"},
			Relations: map[string]catalog.Relation{
				"parent":   {Kind: catalog.KindForward, Target: "shop.Category"},
				"products": {Kind: catalog.KindReverse, Target: "shop.Product", ReverseField: "category"},
			},
		},
		&catalog.Entity{
			Name:   "shop.Product",
			Fields: map[string]string{"title": "string", "price": "float"},
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

// parseDoc parses YAML source into a seed document, failing the test on any
// shape error.
func parseDoc(t *testing.T, src string) document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

// mustPlan builds, graphs and schedules a document against the shared test
// catalog.
func mustPlan(t *testing.T, src string) *Plan {
	t.Helper()
	nodes, refs, err := buildNodes(parseDoc(t, src), testCatalog(t), DefaultRefKeyField)
	require.NoError(t, err)
	g, err := buildGraph(nodes, refs)
	require.NoError(t, err)
	plan, err := schedule(g)
	require.NoError(t, err)
	return plan
}

// planKeys projects a plan to its reference keys in creation order.
func planKeys(p *Plan) []string {
	keys := make([]string, len(p.Order))
	for i, n := range p.Order {
		keys[i] = n.Key
	}
	return keys
}
