package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/arflow/internal/ir"
)

var ar6 = ir.TrueParams{Alpha: 0, Beta: []float64{0.3, 0, 0, 0, 0, 0.6}, Sigma: 1}

func TestSimulateDeterministic(t *testing.T) {
	decl := ir.DefaultModelDecl(6)

	a, err := Simulate(decl, ar6, 200, 0.1, 42)
	require.NoError(t, err)
	b, err := Simulate(decl, ar6, 200, 0.1, 42)
	require.NoError(t, err)
	c, err := Simulate(decl, ar6, 200, 0.1, 43)
	require.NoError(t, err)

	assert.Equal(t, a.Complete, b.Complete)
	assert.Equal(t, a.Series.Missing(), b.Series.Missing())
	assert.NotEqual(t, a.Complete, c.Complete)
}

func TestSimulateMissingCount(t *testing.T) {
	decl := ir.DefaultModelDecl(6)
	tests := []struct {
		n        int
		fraction float64
		want     int
	}{
		{500, 0, 0},
		{500, 0.1, 50},
		{10, 0.25, 3}, // round(2.5) rounds half away from zero
		{7, 0.5, 4},
	}

	for _, tt := range tests {
		res, err := Simulate(decl, ar6, tt.n, tt.fraction, 1)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Series.MissingCount(), "n=%d fraction=%v", tt.n, tt.fraction)
		assert.Equal(t, tt.n, res.Series.Len())
	}
}

func TestSimulateTruthCoversMaskedPositions(t *testing.T) {
	res, err := Simulate(ir.DefaultModelDecl(6), ar6, 100, 0.2, 9)
	require.NoError(t, err)

	for _, idx := range res.Series.Missing() {
		v, ok := res.Truth[ir.IndexedName("y", idx)]
		require.True(t, ok, "truth for y[%d]", idx)
		assert.Equal(t, res.Complete[idx], v)
	}
	for idx := 0; idx < res.Series.Len(); idx++ {
		if o := res.Series.At(idx); o.Present {
			assert.Equal(t, res.Complete[idx], o.Value)
		}
	}
	assert.Equal(t, 0.6, res.Truth["beta[6]"])
	assert.Equal(t, 1.0, res.Truth["sigma"])
}

func TestSimulateRecoversCoefficientsByLeastSquares(t *testing.T) {
	const n = 5000
	res, err := Simulate(ir.DefaultModelDecl(6), ar6, n, 0, 2024)
	require.NoError(t, err)

	p := len(ar6.Beta)
	rows := n - p
	x := mat.NewDense(rows, p+1, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		idx := r + p
		x.Set(r, 0, 1)
		for j := 0; j < p; j++ {
			x.Set(r, j+1, res.Complete[idx-1-j])
		}
		y.SetVec(r, res.Complete[idx])
	}

	var coef mat.VecDense
	require.NoError(t, coef.SolveVec(x, y))

	assert.InDelta(t, ar6.Alpha, coef.AtVec(0), 0.1)
	for j, want := range ar6.Beta {
		assert.InDelta(t, want, coef.AtVec(j+1), 0.06, "beta[%d]", j+1)
	}
}

func TestSimulateStaysFinite(t *testing.T) {
	res, err := Simulate(ir.DefaultModelDecl(6), ar6, 2000, 0, 5)
	require.NoError(t, err)
	for _, v := range res.Complete {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestSimulateValidation(t *testing.T) {
	decl := ir.DefaultModelDecl(6)
	tests := []struct {
		name     string
		decl     ir.ModelDecl
		params   ir.TrueParams
		n        int
		fraction float64
		contains string
	}{
		{"beta length", decl, ir.TrueParams{Beta: []float64{0.1}, Sigma: 1}, 100, 0, "lag coefficients"},
		{"short series", decl, ar6, 6, 0, "too short"},
		{"zero sigma", decl, ir.TrueParams{Beta: ar6.Beta, Sigma: 0}, 100, 0, "sigma"},
		{"fraction one", decl, ar6, 100, 1, "missing fraction"},
		{"negative fraction", decl, ar6, 100, -0.1, "missing fraction"},
		{"zero lags", ir.DefaultModelDecl(0), ir.TrueParams{Sigma: 1}, 100, 0, "lag order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simulate(tt.decl, tt.params, tt.n, tt.fraction, 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
