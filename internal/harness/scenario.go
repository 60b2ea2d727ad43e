package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a model catalog, optional
// pre-existing records, a seed document and the expected terminal outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Models is the inline CUE source of the model catalog.
	Models string `yaml:"models"`

	// Existing seeds the store with committed records before the run, for
	// lookup scenarios.
	Existing []ExistingRecord `yaml:"existing,omitempty"`

	// Seed is the inline YAML seed document.
	Seed string `yaml:"seed"`

	// RefKey overrides the reference key field (default "$ref").
	RefKey string `yaml:"ref_key,omitempty"`

	// ExpectError is the engine error code the run must fail with. Empty
	// means the run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ExistingRecord is one pre-seeded store record.
type ExistingRecord struct {
	Type   string         `yaml:"type"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently validating nothing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Models == "" {
		return fmt.Errorf("models is required")
	}
	if s.Seed == "" {
		return fmt.Errorf("seed is required")
	}
	for i, rec := range s.Existing {
		if rec.Type == "" {
			return fmt.Errorf("existing[%d]: type is required", i)
		}
		if rec.ID == "" {
			return fmt.Errorf("existing[%d]: id is required", i)
		}
	}
	return nil
}
