package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cuelang.org/go/cue/cuecontext"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/document"
	"github.com/seedloom/seedloom/internal/engine"
	"github.com/seedloom/seedloom/internal/testutil"
)

// Result captures one scenario execution.
type Result struct {
	// Plan is the creation plan, when planning succeeded.
	Plan []engine.PlanStep

	// Created and Associations mirror the engine result on success.
	Created      map[string]int
	Associations int

	// ErrorCode and Cycle describe the terminal load error, if any.
	ErrorCode string
	Cycle     []string

	// Calls is the recorded store call sequence.
	Calls []string
}

// Run executes a scenario against a fresh recording in-memory store.
//
// Infrastructure failures (bad CUE, malformed seed YAML) return an error.
// Document failures are data: they land in the result as the engine error
// code, ready for golden comparison. A mismatch against ExpectError is an
// error here, so a scenario can never silently pass with the wrong outcome.
func Run(scenario *Scenario) (*Result, error) {
	cat, err := buildCatalog(scenario.Models)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	doc, err := document.Parse([]byte(scenario.Seed))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st := testutil.NewMemStore()
	for _, rec := range scenario.Existing {
		st.Seed(rec.Type, rec.ID, rec.Fields)
	}

	opts := []engine.Option{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.RefKey != "" {
		opts = append(opts, engine.WithRefKeyField(scenario.RefKey))
	}
	loader := engine.New(cat, st, opts...)

	result := &Result{}
	if plan, err := loader.Plan(doc); err == nil {
		result.Plan = plan.Steps()
	}

	res, err := loader.Load(context.Background(), doc)
	if err != nil {
		var le *engine.LoadError
		if !errors.As(err, &le) {
			return nil, fmt.Errorf("scenario %s: unexpected error type: %w", scenario.Name, err)
		}
		result.ErrorCode = string(le.Code)
		result.Cycle = le.Cycle
	} else {
		result.Created = res.Created
		result.Associations = res.Associations
	}
	result.Calls = st.Calls

	if result.ErrorCode != scenario.ExpectError {
		return nil, fmt.Errorf("scenario %s: error code %q, expected %q",
			scenario.Name, result.ErrorCode, scenario.ExpectError)
	}
	return result, nil
}

// buildCatalog compiles inline CUE model source into a catalog.
func buildCatalog(src string) (*catalog.Catalog, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling models: %w", err)
	}
	return catalog.FromValue(value)
}
