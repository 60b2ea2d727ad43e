package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios against its
// golden snapshot.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, "loading %s", path)

		t.Run(scenario.Name, func(t *testing.T) {
			RunWithGolden(t, scenario)
		})
	}
}

func TestRunRejectsWrongOutcome(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_outcome",
		Description: "run must fail when the outcome differs from the expectation",
		Models: `entities: {"shop.Tag": {fields: {name: "string"}}}
`,
		Seed: `shop:
  Tag:
    - name: fiction
`,
		// The document is valid, so a declared error expectation must fail
		// the run.
		ExpectError: "CYCLIC_DEPENDENCY",
	}
	_, err := Run(scenario)
	require.Error(t, err)
	require.Contains(t, err.Error(), "error code")
}

func TestRunSeedsExistingRecords(t *testing.T) {
	scenario := &Scenario{
		Name:        "existing_records",
		Description: "pre-seeded records are visible to lookups",
		Models: `entities: {
	"shop.Category": {fields: {name: "string"}}
	"shop.Product": {
		fields: {title: "string"}
		relations: {category: {kind: "forward", target: "shop.Category"}}
	}
}
`,
		Existing: []ExistingRecord{
			{Type: "shop.Category", ID: "cat-9", Fields: map[string]any{"name": "Books"}},
		},
		Seed: `shop:
  Product:
    - title: only
      category: '@name:Books'
`,
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"shop.Product": 1}, result.Created)
	require.Empty(t, result.ErrorCode)
}

func TestRunBadModelsIsInfrastructureError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_models",
		Description: "invalid CUE fails the run, not the document",
		Models:      `entities: {{{`,
		Seed:        `shop: {}`,
	}
	_, err := Run(scenario)
	require.Error(t, err)
}
