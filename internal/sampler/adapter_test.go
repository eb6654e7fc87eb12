package sampler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/metrics"
	"github.com/roach88/arflow/internal/model"
	"github.com/roach88/arflow/internal/sampler"
	"github.com/roach88/arflow/internal/testutil"
)

// newSpec builds an AR(1) spec over six observations with index 3 missing.
// Its layout is alpha, beta[1], tau, lambda[1], sigma, y[3].
func newSpec(t *testing.T) *model.Spec {
	t.Helper()
	ts := ir.NewTimeSeries([]ir.Observation{
		ir.Observed(0.1), ir.Observed(0.4), ir.Observed(-0.2),
		ir.Absent(), ir.Observed(0.3), ir.Observed(0.0),
	})
	spec, err := model.New(ir.DefaultModelDecl(1), ts)
	require.NoError(t, err)
	return spec
}

func validTheta() []float64 {
	return []float64{0, 0.5, 1, 1, 1, 0.2}
}

func TestFitAssemblesChainsInOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSampler(reg)
	backend := &testutil.ScriptedBackend{
		Values: func(c, i int) []float64 {
			theta := validTheta()
			theta[0] = float64(100*c + i)
			return theta
		},
		Divergent: func(c, i int) bool { return c == 1 && i == 0 },
	}
	s := sampler.New(backend,
		sampler.WithMetrics(m),
		sampler.WithIDGenerator(ir.NewFixedGenerator("fit-1")),
	)

	fit, err := s.Fit(context.Background(), newSpec(t), "series-1", sampler.Request{
		Chains: 3, Draws: 4, Warmup: 10, Seed: 7, Workers: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "fit-1", fit.ID)
	assert.Equal(t, "series-1", fit.SeriesID)
	assert.True(t, fit.Complete)
	assert.Equal(t, 10, fit.Warmup)
	assert.Equal(t, uint64(7), fit.Seed)
	assert.Equal(t, 6, fit.Layout.Len())
	require.Len(t, fit.Chains, 3)
	for c, chain := range fit.Chains {
		assert.Equal(t, c, chain.ID)
		require.Len(t, chain.Draws, 4)
		for i, d := range chain.Draws {
			assert.Equal(t, float64(100*c+i), d.Values[0])
			assert.Equal(t, 1, d.Imputed, "every draw fills the one missing position")
		}
	}
	assert.Equal(t, 1, fit.Chains[1].Divergences())

	assert.Equal(t, 4.0, promtest.ToFloat64(m.Draws.WithLabelValues("2")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Divergences.WithLabelValues("1")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.Failures))
}

func TestFitRejectsInvalidRequest(t *testing.T) {
	s := sampler.New(&testutil.ScriptedBackend{Values: testutil.ConstantScript(validTheta())})
	tests := []struct {
		name string
		req  sampler.Request
	}{
		{"no chains", sampler.Request{Chains: 0, Draws: 1, Workers: 1}},
		{"no draws", sampler.Request{Chains: 1, Draws: 0, Workers: 1}},
		{"negative warmup", sampler.Request{Chains: 1, Draws: 1, Warmup: -1, Workers: 1}},
		{"no workers", sampler.Request{Chains: 1, Draws: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit, err := s.Fit(context.Background(), newSpec(t), "s", tt.req)
			assert.Error(t, err)
			assert.Nil(t, fit)
		})
	}
}

func TestFitChainFailureIsSurfaced(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSampler(reg)
	boom := errors.New("step size collapsed")
	calls := map[int]*atomic.Int32{0: {}, 1: {}}
	inner := &testutil.ScriptedBackend{
		Values:    testutil.ConstantScript(validTheta()),
		Fail:      map[int]error{1: boom},
		FailAfter: 1,
	}
	backend := sampler.BackendFunc(func(ctx context.Context, target sampler.Target, req sampler.ChainRequest) (sampler.ChainResult, error) {
		calls[req.Chain].Add(1)
		return inner.SampleChain(ctx, target, req)
	})
	s := sampler.New(backend, sampler.WithMetrics(m))

	fit, err := s.Fit(context.Background(), newSpec(t), "s", sampler.Request{
		Chains: 2, Draws: 3, Workers: 2,
	})
	require.Error(t, err)
	assert.Nil(t, fit)
	assert.True(t, sampler.IsSamplerFailure(err))
	assert.ErrorIs(t, err, boom)

	var sf *sampler.SamplerFailureError
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, 1, sf.Chain)

	assert.Equal(t, int32(1), calls[1].Load(), "failed chain is not retried")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Failures))
}

func TestFitRejectsMalformedDraws(t *testing.T) {
	s := sampler.New(&testutil.ScriptedBackend{Values: testutil.ConstantScript([]float64{1, 2})})
	_, err := s.Fit(context.Background(), newSpec(t), "s", sampler.Request{
		Chains: 1, Draws: 3, Workers: 1,
	})
	assert.True(t, sampler.IsSamplerFailure(err))
	assert.Contains(t, err.Error(), "has 2 values, want 6")
}

func TestFitRejectsShortChain(t *testing.T) {
	backend := sampler.BackendFunc(func(ctx context.Context, _ sampler.Target, req sampler.ChainRequest) (sampler.ChainResult, error) {
		return sampler.ChainResult{Draws: []ir.Draw{{Index: 0, Values: validTheta()}}}, nil
	})
	_, err := sampler.New(backend).Fit(context.Background(), newSpec(t), "s", sampler.Request{
		Chains: 1, Draws: 5, Workers: 1,
	})
	assert.True(t, sampler.IsSamplerFailure(err))
	assert.Contains(t, err.Error(), "returned 1 draws, want 5")
}

func TestFitRecoversBackendPanic(t *testing.T) {
	backend := sampler.BackendFunc(func(context.Context, sampler.Target, sampler.ChainRequest) (sampler.ChainResult, error) {
		panic("index out of range")
	})
	_, err := sampler.New(backend).Fit(context.Background(), newSpec(t), "s", sampler.Request{
		Chains: 2, Draws: 5, Workers: 1,
	})
	assert.True(t, sampler.IsSamplerFailure(err))
	assert.ErrorIs(t, err, sampler.ErrNumericalFailure)
}

func TestFitCancellationReturnsPartialFit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSampler(reg)
	stopped := make(chan int, 2)
	backend := &testutil.ScriptedBackend{
		Values:    testutil.ConstantScript(validTheta()),
		StopAfter: 2,
		Stopped:   stopped,
	}
	s := sampler.New(backend, sampler.WithMetrics(m), sampler.WithIDGenerator(ir.NewFixedGenerator("fit-partial")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopped
		<-stopped
		cancel()
	}()

	fit, err := s.Fit(ctx, newSpec(t), "s", sampler.Request{
		Chains: 2, Draws: 10, Workers: 2,
	})
	require.Error(t, err)
	require.NotNil(t, fit)
	assert.True(t, sampler.IsIncompleteFit(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fit.Complete)
	assert.Equal(t, "fit-partial", fit.ID)
	for _, chain := range fit.Chains {
		assert.Len(t, chain.Draws, 2)
	}

	var ie *sampler.IncompleteFitError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []int{2, 2}, ie.Draws)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Cancellations))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.Failures))
}

func TestFitBoundsWorkers(t *testing.T) {
	var inFlight, peak atomic.Int32
	backend := sampler.BackendFunc(func(ctx context.Context, _ sampler.Target, req sampler.ChainRequest) (sampler.ChainResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		draws := make([]ir.Draw, req.Draws)
		for i := range draws {
			draws[i] = ir.Draw{Index: i, Values: validTheta()}
		}
		return sampler.ChainResult{Draws: draws}, nil
	})

	fit, err := sampler.New(backend).Fit(context.Background(), newSpec(t), "s", sampler.Request{
		Chains: 6, Draws: 2, Workers: 2,
	})
	require.NoError(t, err)
	assert.Len(t, fit.Chains, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFitSeedsChainsIndependently(t *testing.T) {
	var seen [3]atomic.Uint64
	backend := sampler.BackendFunc(func(ctx context.Context, _ sampler.Target, req sampler.ChainRequest) (sampler.ChainResult, error) {
		seen[req.Chain].Store(req.Seed + 1)
		draws := make([]ir.Draw, req.Draws)
		for i := range draws {
			draws[i] = ir.Draw{Index: i, Values: validTheta()}
		}
		return sampler.ChainResult{Draws: draws}, nil
	})

	_, err := sampler.New(backend).Fit(context.Background(), newSpec(t), "s", sampler.Request{
		Chains: 3, Draws: 1, Seed: 41, Workers: 3,
	})
	require.NoError(t, err)
	for c := range seen {
		assert.Equal(t, uint64(42), seen[c].Load(), "chain %d carries the fit seed", c)
	}
}
