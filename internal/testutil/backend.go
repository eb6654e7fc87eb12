package testutil

import (
	"context"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/sampler"
)

// ScriptedBackend is a deterministic sampler.Backend for tests.
//
// Draw i of chain c has the values returned by Values(c, i). Nothing is
// random: the same script produces the same fit for any seed or worker count.
//
// Thread-safety: safe for concurrent use as long as Values and Divergent are.
type ScriptedBackend struct {
	// Values returns the parameter vector of draw i in chain c.
	Values func(chain, i int) []float64

	// Divergent flags draw i in chain c. Nil means no divergences.
	Divergent func(chain, i int) bool

	// Fail maps a chain to the error it reports after FailAfter draws.
	Fail      map[int]error
	FailAfter int

	// StopAfter, when positive, makes every chain emit that many draws,
	// send its chain ID on Stopped (if non-nil), then wait for ctx to end.
	StopAfter int
	Stopped   chan<- int
}

// SampleChain implements sampler.Backend.
func (b *ScriptedBackend) SampleChain(ctx context.Context, _ sampler.Target, req sampler.ChainRequest) (sampler.ChainResult, error) {
	n := req.Draws
	if err, ok := b.Fail[req.Chain]; ok {
		n = b.FailAfter
		return sampler.ChainResult{Draws: b.draws(req.Chain, n)}, err
	}
	if b.StopAfter > 0 && b.StopAfter < n {
		draws := b.draws(req.Chain, b.StopAfter)
		if b.Stopped != nil {
			b.Stopped <- req.Chain
		}
		<-ctx.Done()
		return sampler.ChainResult{Draws: draws}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return sampler.ChainResult{}, err
	}
	return sampler.ChainResult{Draws: b.draws(req.Chain, n)}, nil
}

func (b *ScriptedBackend) draws(chain, n int) []ir.Draw {
	out := make([]ir.Draw, n)
	for i := range out {
		out[i] = ir.Draw{Index: i, Values: b.Values(chain, i)}
		if b.Divergent != nil {
			out[i].Divergent = b.Divergent(chain, i)
		}
	}
	return out
}

// ConstantScript returns a Values function that repeats theta for every draw
// of every chain.
func ConstantScript(theta []float64) func(chain, i int) []float64 {
	return func(int, int) []float64 {
		out := make([]float64, len(theta))
		copy(out, theta)
		return out
	}
}
