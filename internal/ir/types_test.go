package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportContains(t *testing.T) {
	tests := []struct {
		support Support
		x       float64
		want    bool
	}{
		{SupportReal, -3.5, true},
		{SupportReal, 0, true},
		{SupportReal, math.NaN(), false},
		{SupportReal, math.Inf(1), false},
		{SupportPositive, 0.001, true},
		{SupportPositive, 0, false},
		{SupportPositive, -1, false},
		{SupportPositive, math.NaN(), false},
		{SupportPositive, math.Inf(1), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.support.Contains(tt.x), "%s contains %v", tt.support, tt.x)
	}
}

func TestLayoutIndex(t *testing.T) {
	l, err := NewLayout([]Param{
		{Name: "alpha", Support: SupportReal},
		{Name: "beta[1]", Support: SupportReal},
		{Name: "sigma", Support: SupportPositive},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, l.Len())
	i, ok := l.Index("sigma")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = l.Index("tau")
	assert.False(t, ok)
	assert.Equal(t, []string{"alpha", "beta[1]", "sigma"}, l.Names())
}

func TestLayoutRejectsDuplicates(t *testing.T) {
	_, err := NewLayout([]Param{{Name: "alpha"}, {Name: "alpha"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLayoutParamsIsCopy(t *testing.T) {
	l, err := NewLayout([]Param{{Name: "alpha", Support: SupportReal}})
	require.NoError(t, err)

	params := l.Params()
	params[0].Name = "mutated"
	assert.Equal(t, "alpha", l.At(0).Name)
}

func TestIndexedName(t *testing.T) {
	assert.Equal(t, "beta[6]", IndexedName("beta", 6))

	base, i, ok := ParseIndexedName("y[17]")
	assert.True(t, ok)
	assert.Equal(t, "y", base)
	assert.Equal(t, 17, i)

	_, _, ok = ParseIndexedName("sigma")
	assert.False(t, ok)
	_, _, ok = ParseIndexedName("beta[x]")
	assert.False(t, ok)
}

func TestTrueParamsMap(t *testing.T) {
	p := TrueParams{Alpha: 0, Beta: []float64{0.3, 0, 0.6}, Sigma: 1}
	m := p.Map()

	assert.Len(t, m, 5)
	assert.Equal(t, 0.3, m["beta[1]"])
	assert.Equal(t, 0.6, m["beta[3]"])
	assert.Equal(t, 1.0, m["sigma"])
}
