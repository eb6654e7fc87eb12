package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arflow/internal/sampler"
)

func TestScriptedBackendDeterministic(t *testing.T) {
	b := &ScriptedBackend{
		Values:    func(c, i int) []float64 { return []float64{float64(10*c + i)} },
		Divergent: func(c, i int) bool { return i == 1 },
	}
	req := sampler.ChainRequest{Chain: 2, Draws: 3}

	res, err := b.SampleChain(context.Background(), nil, req)
	require.NoError(t, err)
	require.Len(t, res.Draws, 3)
	for i, d := range res.Draws {
		assert.Equal(t, i, d.Index)
		assert.Equal(t, []float64{float64(20 + i)}, d.Values)
		assert.Equal(t, i == 1, d.Divergent)
	}
}

func TestScriptedBackendFail(t *testing.T) {
	boom := errors.New("boom")
	b := &ScriptedBackend{
		Values:    ConstantScript([]float64{1}),
		Fail:      map[int]error{1: boom},
		FailAfter: 2,
	}

	res, err := b.SampleChain(context.Background(), nil, sampler.ChainRequest{Chain: 1, Draws: 5})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, res.Draws, 2)

	res, err = b.SampleChain(context.Background(), nil, sampler.ChainRequest{Chain: 0, Draws: 5})
	require.NoError(t, err)
	assert.Len(t, res.Draws, 5)
}

func TestScriptedBackendStopAfter(t *testing.T) {
	stopped := make(chan int, 1)
	b := &ScriptedBackend{Values: ConstantScript([]float64{1}), StopAfter: 2, Stopped: stopped}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stopped
		cancel()
	}()

	res, err := b.SampleChain(ctx, nil, sampler.ChainRequest{Draws: 5})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Draws, 2)
}

func TestConstantScriptCopies(t *testing.T) {
	theta := []float64{1, 2}
	f := ConstantScript(theta)
	v := f(0, 0)
	v[0] = 99
	assert.Equal(t, []float64{1, 2}, f(0, 1))
}

func TestBuildFit(t *testing.T) {
	layout := RealLayout(t, "a", "b")
	fit := BuildFit(t, layout, [][][]float64{
		{{1, 2, 3}, {4, 5, 6}},
		{{7, 8, 9}, {10, 11, 12}},
	})

	assert.True(t, fit.Complete)
	require.Len(t, fit.Chains, 2)
	assert.Equal(t, []float64{2, 5}, fit.Chains[0].Draws[1].Values)
	b, ok := fit.Column("b")
	require.True(t, ok)
	assert.Equal(t, []float64{4, 5, 6, 10, 11, 12}, b)
}

func TestAlternating(t *testing.T) {
	assert.Equal(t, []float64{1, -1, 1, -1, 1}, Alternating(5))
	assert.Equal(t, []float64{3, 3}, Repeat(3, 2))
}
