package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: sample
description: a sample scenario
models: |
  entities: {"shop.Tag": {fields: {name: "string"}}}
seed: |
  shop:
    Tag:
      - name: fiction
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	require.Equal(t, "sample", scenario.Name)
	require.Contains(t, scenario.Models, "shop.Tag")
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	// "expect:" is a typo for "expect_error:".
	path := writeScenario(t, `
name: sample
description: a sample scenario
models: "entities: {}"
seed: "shop: {}"
expect: CYCLIC_DEPENDENCY
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenarioRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "description: d\nmodels: m\nseed: s\n"},
		{"missing description", "name: n\nmodels: m\nseed: s\n"},
		{"missing models", "name: n\ndescription: d\nseed: s\n"},
		{"missing seed", "name: n\ndescription: d\nmodels: m\n"},
		{"existing without id", "name: n\ndescription: d\nmodels: m\nseed: s\nexisting:\n  - type: shop.Tag\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
