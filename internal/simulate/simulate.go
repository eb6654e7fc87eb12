// Package simulate generates synthetic AR(P) series with known parameters,
// for parameter-recovery testing.
package simulate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/series"
)

// Result is a simulated series together with the truth used to produce it.
type Result struct {
	// Series is the observed series, with the injected missing positions.
	Series ir.TimeSeries

	// Complete is the fully known trajectory before masking.
	Complete []float64

	// Params are the fixed parameter values used.
	Params ir.TrueParams

	// Truth maps every recoverable parameter name to its true value,
	// including y[t] for each masked position.
	Truth map[string]float64
}

// Simulate draws a series of length n from the AR(P) model in decl with the
// parameters p, then marks round(missingFraction*n) positions missing,
// chosen uniformly without replacement. Deterministic given seed.
//
// The first P observations are drawn from the intercept-only location. Later
// observations use the P preceding values of the complete trajectory, never
// the masked series.
func Simulate(decl ir.ModelDecl, p ir.TrueParams, n int, missingFraction float64, seed uint64) (*Result, error) {
	if err := validate(decl, p, n, missingFraction); err != nil {
		return nil, err
	}

	src := rand.NewPCG(seed, 0x5eed)
	rng := rand.New(src)
	noise := distuv.Normal{Mu: 0, Sigma: p.Sigma, Src: src}

	y := make([]float64, n)
	for t := 0; t < n; t++ {
		mu := p.Alpha
		if t >= decl.Lags {
			for j, b := range p.Beta {
				mu += b * y[t-1-j]
			}
		}
		y[t] = mu + noise.Rand()
	}

	k := int(math.Round(missingFraction * float64(n)))
	missing := sampleWithoutReplacement(rng, n, k)

	ts, err := series.Encode(y, missing)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	truth := p.Map()
	for _, t := range missing {
		truth[ir.IndexedName("y", t)] = y[t]
	}

	return &Result{
		Series:   ts,
		Complete: y,
		Params:   p,
		Truth:    truth,
	}, nil
}

// sampleWithoutReplacement returns k distinct indices from 0..n-1, sorted.
// Uses a partial Fisher-Yates shuffle.
func sampleWithoutReplacement(rng *rand.Rand, n, k int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	out := perm[:k:k]
	sort.Ints(out)
	return out
}

func validate(decl ir.ModelDecl, p ir.TrueParams, n int, missingFraction float64) error {
	if decl.Lags < 1 {
		return fmt.Errorf("simulate: lag order must be at least 1, got %d", decl.Lags)
	}
	if len(p.Beta) != decl.Lags {
		return fmt.Errorf("simulate: got %d lag coefficients for AR(%d)", len(p.Beta), decl.Lags)
	}
	if n < decl.Lags+1 {
		return fmt.Errorf("simulate: length %d too short for AR(%d)", n, decl.Lags)
	}
	if !(p.Sigma > 0) || math.IsInf(p.Sigma, 1) {
		return fmt.Errorf("simulate: sigma must be strictly positive, got %v", p.Sigma)
	}
	if !(missingFraction >= 0 && missingFraction < 1) {
		return fmt.Errorf("simulate: missing fraction must be in [0, 1), got %v", missingFraction)
	}
	return nil
}
