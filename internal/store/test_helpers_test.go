package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSeries stores a five-point series with index 2 missing.
func createTestSeries(t *testing.T, s *Store, id string) SeriesRecord {
	t.Helper()
	rec := SeriesRecord{
		ID:     id,
		Name:   "test",
		Source: SourceSimulated,
		Series: ir.NewTimeSeries([]ir.Observation{
			ir.Observed(1.5), ir.Observed(-2), ir.Absent(), ir.Observed(0), ir.Observed(3.25),
		}),
		Truth: map[string]float64{"alpha": 0, "beta[1]": 0.5, "sigma": 1, "y[2]": 0.75},
	}
	if err := s.WriteSeries(context.Background(), rec); err != nil {
		t.Fatalf("WriteSeries() failed: %v", err)
	}
	return rec
}

// createTestFit builds a two-chain fit over alpha and y[2] with distinct values
// per (chain, draw, param).
func createTestFit(t *testing.T, id, seriesID string) *ir.Fit {
	t.Helper()
	layout := testutil.RealLayout(t, "alpha", "y[2]")
	fit := testutil.BuildFit(t, layout, [][][]float64{
		{{0.1, 0.2, 0.3}, {1.1, 1.2, 1.3}},
		{{2.1, 2.2, 2.3}, {3.1, 3.2, 3.3}},
	})
	fit.ID = id
	fit.SeriesID = seriesID
	fit.Model = ir.DefaultModelDecl(1)
	fit.Warmup = 100
	fit.Seed = 1<<63 + 5
	fit.Chains[1].Draws[2].Divergent = true
	for c := range fit.Chains {
		for i := range fit.Chains[c].Draws {
			fit.Chains[c].Draws[i].Imputed = 1
		}
	}
	return fit
}
