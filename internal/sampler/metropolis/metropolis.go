// Package metropolis is the reference sampling backend: adaptive
// component-wise random-walk Metropolis in unconstrained space.
//
// Positive parameters are sampled on the log scale with the matching
// log-Jacobian term, so every proposal stays inside the support. During
// warmup each component's proposal scale is tuned per batch towards a fixed
// acceptance rate; after warmup scales are frozen and the chain is a valid
// Markov chain for the target.
//
// A transition is flagged divergent when any proposal in it evaluated to a
// NaN or +Inf log density. Such proposals are rejected.
package metropolis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/sampler"
)

// Config tunes the backend.
type Config struct {
	// TargetAcceptance is the per-component acceptance rate aimed for
	// during warmup.
	TargetAcceptance float64

	// BatchSize is the number of iterations between scale adjustments.
	BatchSize int

	// InitialScale is the starting proposal standard deviation in
	// unconstrained space.
	InitialScale float64

	// InitAttempts bounds the number of initial points tried before the
	// chain fails with sampler.ErrNumericalFailure.
	InitAttempts int
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		TargetAcceptance: 0.44,
		BatchSize:        50,
		InitialScale:     0.25,
		InitAttempts:     100,
	}
}

// Backend implements sampler.Backend.
// It is stateless and safe for concurrent use across chains.
type Backend struct {
	cfg Config
}

// New creates a backend with cfg. Zero fields take their DefaultConfig value.
func New(cfg Config) *Backend {
	def := DefaultConfig()
	if cfg.TargetAcceptance <= 0 || cfg.TargetAcceptance >= 1 {
		cfg.TargetAcceptance = def.TargetAcceptance
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.InitialScale <= 0 {
		cfg.InitialScale = def.InitialScale
	}
	if cfg.InitAttempts < 1 {
		cfg.InitAttempts = def.InitAttempts
	}
	return &Backend{cfg: cfg}
}

// chainSeed keeps chain streams apart for the same fit seed.
const chainSeed = 0x9e3779b97f4a7c15

// SampleChain runs Warmup+Draws iterations and keeps the last Draws.
func (b *Backend) SampleChain(ctx context.Context, target sampler.Target, req sampler.ChainRequest) (sampler.ChainResult, error) {
	rng := rand.New(rand.NewPCG(req.Seed, chainSeed^uint64(req.Chain)))
	d := newDensity(target)

	z, lp, err := b.initialize(rng, d)
	if err != nil {
		return sampler.ChainResult{}, err
	}

	n := len(z)
	logScale := make([]float64, n)
	for i := range logScale {
		logScale[i] = math.Log(b.cfg.InitialScale)
	}
	accepted := make([]int, n)
	batch := 0

	draws := make([]ir.Draw, 0, req.Draws)
	proposal := make([]float64, n)
	total := req.Warmup + req.Draws
	for iter := 0; iter < total; iter++ {
		if err := ctx.Err(); err != nil {
			return sampler.ChainResult{Draws: draws}, err
		}

		divergent := false
		for i := 0; i < n; i++ {
			copy(proposal, z)
			proposal[i] += math.Exp(logScale[i]) * rng.NormFloat64()
			next := d.eval(proposal)
			if math.IsNaN(next) || math.IsInf(next, 1) {
				divergent = true
				continue
			}
			if math.Log(rng.Float64()) < next-lp {
				z[i] = proposal[i]
				lp = next
				accepted[i]++
			}
		}

		if iter < req.Warmup && (iter+1)%b.cfg.BatchSize == 0 {
			batch++
			delta := math.Min(0.5, 1/math.Sqrt(float64(batch)))
			for i := range logScale {
				if float64(accepted[i])/float64(b.cfg.BatchSize) > b.cfg.TargetAcceptance {
					logScale[i] += delta
				} else {
					logScale[i] -= delta
				}
				accepted[i] = 0
			}
		}

		if iter >= req.Warmup {
			draws = append(draws, ir.Draw{
				Index:     iter - req.Warmup,
				Values:    d.constrain(z, make([]float64, n)),
				Divergent: divergent,
			})
		}
	}
	return sampler.ChainResult{Draws: draws}, nil
}

// initialize draws initial points until one has a finite log density.
func (b *Backend) initialize(rng *rand.Rand, d *density) ([]float64, float64, error) {
	for attempt := 0; attempt < b.cfg.InitAttempts; attempt++ {
		theta := d.target.Initial(rng)
		if len(theta) != len(d.supports) {
			return nil, 0, fmt.Errorf("initial point has %d values, want %d", len(theta), len(d.supports))
		}
		z := d.unconstrain(theta)
		lp := d.eval(z)
		if !math.IsNaN(lp) && !math.IsInf(lp, 0) {
			return z, lp, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: no finite log density at %d initial points", sampler.ErrNumericalFailure, b.cfg.InitAttempts)
}

// density evaluates the target's log density in unconstrained space.
// Not safe for concurrent use: it owns scratch buffers.
type density struct {
	target   sampler.Target
	supports []ir.Support
	theta    []float64
	series   []float64
}

func newDensity(target sampler.Target) *density {
	params := target.Params()
	supports := make([]ir.Support, len(params))
	for i, p := range params {
		supports[i] = p.Support
	}
	return &density{
		target:   target,
		supports: supports,
		theta:    make([]float64, len(params)),
	}
}

func (d *density) unconstrain(theta []float64) []float64 {
	z := make([]float64, len(theta))
	for i, v := range theta {
		if d.supports[i] == ir.SupportPositive {
			z[i] = math.Log(v)
		} else {
			z[i] = v
		}
	}
	return z
}

func (d *density) constrain(z, dst []float64) []float64 {
	for i, v := range z {
		if d.supports[i] == ir.SupportPositive {
			dst[i] = math.Exp(v)
		} else {
			dst[i] = v
		}
	}
	return dst
}

// eval returns log p(theta(z)) + log|d theta/d z|.
func (d *density) eval(z []float64) float64 {
	theta := d.constrain(z, d.theta)
	jacobian := 0.0
	for i, s := range d.supports {
		if s == ir.SupportPositive {
			if theta[i] == 0 || math.IsInf(theta[i], 1) {
				return math.Inf(-1)
			}
			jacobian += z[i]
		}
	}
	lp := d.target.LogPrior(theta)
	if math.IsInf(lp, -1) {
		return lp
	}
	d.series = d.target.Reconstruct(theta, d.series)
	return lp + d.target.LogLikelihood(theta, d.series) + jacobian
}
