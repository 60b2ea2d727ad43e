package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/seedloom/seedloom/internal/engine"
)

// Snapshot is the canonical serialized form of a scenario result. Field
// order is fixed and maps marshal with sorted keys, so equal results always
// produce equal bytes.
type Snapshot struct {
	Scenario     string            `json:"scenario"`
	Error        string            `json:"error,omitempty"`
	Cycle        []string          `json:"cycle,omitempty"`
	Plan         []engine.PlanStep `json:"plan,omitempty"`
	Created      map[string]int    `json:"created,omitempty"`
	Associations int               `json:"associations"`
	Calls        []string          `json:"calls,omitempty"`
}

// RunWithGolden executes a scenario and compares its snapshot against the
// golden file testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario execution failed: %v", err)
	}

	snapshot := Snapshot{
		Scenario:     scenario.Name,
		Error:        result.ErrorCode,
		Cycle:        result.Cycle,
		Plan:         result.Plan,
		Created:      result.Created,
		Associations: result.Associations,
		Calls:        result.Calls,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
}
