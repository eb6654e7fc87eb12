package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/arflow/internal/ir"
)

// RealLayout builds a layout of real-valued parameters with the given names.
func RealLayout(t testing.TB, names ...string) ir.Layout {
	t.Helper()
	params := make([]ir.Param, len(names))
	for i, n := range names {
		params[i] = ir.Param{Name: n, Support: ir.SupportReal}
	}
	layout, err := ir.NewLayout(params)
	require.NoError(t, err)
	return layout
}

// BuildFit assembles a complete fit from per-chain, per-parameter columns:
// columns[c][p][i] is the value of parameter p at draw i of chain c.
// All chains must have the same number of draws.
func BuildFit(t testing.TB, layout ir.Layout, columns [][][]float64) *ir.Fit {
	t.Helper()
	fit := &ir.Fit{
		ID:       "fit-test",
		SeriesID: "series-test",
		Layout:   layout,
		Complete: true,
	}
	for c, cols := range columns {
		require.Len(t, cols, layout.Len(), "chain %d", c)
		n := len(cols[0])
		chain := ir.Chain{ID: c, Draws: make([]ir.Draw, n)}
		for i := 0; i < n; i++ {
			values := make([]float64, layout.Len())
			for p := range cols {
				require.Len(t, cols[p], n, "chain %d param %d", c, p)
				values[p] = cols[p][i]
			}
			chain.Draws[i] = ir.Draw{Index: i, Values: values}
		}
		fit.Chains = append(fit.Chains, chain)
	}
	return fit
}

// SingleParamFit builds a fit with one real parameter named "x" where
// chains[c] is that parameter's trace in chain c.
func SingleParamFit(t testing.TB, chains ...[]float64) *ir.Fit {
	t.Helper()
	columns := make([][][]float64, len(chains))
	for c, trace := range chains {
		columns[c] = [][]float64{trace}
	}
	return BuildFit(t, RealLayout(t, "x"), columns)
}

// Repeat returns n copies of v.
func Repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Alternating returns the sequence +1, -1, +1, ... of length n.
// Its lag-1 autocorrelation is -1 and every lag-pair sum is non-positive.
func Alternating(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}
