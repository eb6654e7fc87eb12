package sampler

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/roach88/arflow/internal/ir"
)

// ErrNumericalFailure is wrapped by backends that hit a non-recoverable
// numerical problem, such as a non-finite density at every initial point.
var ErrNumericalFailure = errors.New("numerical failure")

// Target is the model-description contract handed to a backend.
// Implementations must be pure and safe for concurrent use.
type Target interface {
	// Params declares parameter names and supports, in vector order.
	Params() []ir.Param

	// LogPrior evaluates the joint log prior; -Inf outside the support.
	LogPrior(theta []float64) float64

	// LogLikelihood evaluates the log likelihood of the reconstructed series y.
	LogLikelihood(theta, y []float64) float64

	// Reconstruct fills dst with the series implied by theta and returns it.
	Reconstruct(theta, dst []float64) []float64

	// Initial draws a starting point inside the support.
	Initial(rng *rand.Rand) []float64
}

// ChainRequest describes one chain.
type ChainRequest struct {
	// Chain identifies the chain; backends derive their random stream from
	// (Seed, Chain) so chains differ only in their random state.
	Chain int

	Seed   uint64
	Warmup int
	Draws  int
}

// ChainResult is the output of one chain: post-warmup draws in order.
type ChainResult struct {
	Draws []ir.Draw
}

// Backend is the external sampling capability.
type Backend interface {
	// SampleChain runs one chain. On context cancellation it returns the
	// draws collected so far together with the context's error.
	SampleChain(ctx context.Context, target Target, req ChainRequest) (ChainResult, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, target Target, req ChainRequest) (ChainResult, error)

// SampleChain calls f.
func (f BackendFunc) SampleChain(ctx context.Context, target Target, req ChainRequest) (ChainResult, error) {
	return f(ctx, target, req)
}
