package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/arflow/internal/sampler"
)

// RunWithGolden executes a scenario and compares its result against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Only deterministic backends belong in golden tests: the result is compared
// byte for byte.
func RunWithGolden(t *testing.T, scenario *Scenario, backend sampler.Backend) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, backend)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares result, as indented JSON, against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
