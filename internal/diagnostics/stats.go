package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// splitChains cuts every chain in half, dropping the middle draw of odd
// length chains. chains must all have the same length.
func splitChains(chains [][]float64) [][]float64 {
	out := make([][]float64, 0, 2*len(chains))
	for _, c := range chains {
		half := len(c) / 2
		out = append(out, c[:half], c[len(c)-half:])
	}
	return out
}

// rhat is the potential scale reduction factor over equal-length chains.
//
// When every chain is constant the within-chain variance is zero: the result
// is 1 if all chains sit at the same value and +Inf otherwise.
func rhat(chains [][]float64) float64 {
	m := float64(len(chains))
	n := float64(len(chains[0]))

	means := make([]float64, len(chains))
	w := 0.0
	for j, c := range chains {
		mean, variance := stat.MeanVariance(c, nil)
		means[j] = mean
		w += variance
	}
	w /= m
	b := n * stat.Variance(means, nil)

	if w == 0 {
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}
	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// ess is the multi-chain effective sample size.
//
// Autocorrelations combine within-chain autocovariances with the
// between-chain variance. The sum over lags is truncated by Geyer's initial
// positive sequence and made monotone. total is the draw count of the
// unsplit chains, which keeps the middle draw an odd-length split drops.
// The result never exceeds total and equals it when no positive pair sum
// exists. NaN when every draw is identical.
func ess(chains [][]float64, total int) float64 {
	m := len(chains)
	n := len(chains[0])

	means := make([]float64, m)
	meanVar := 0.0
	for j, c := range chains {
		mean, variance := stat.MeanVariance(c, nil)
		means[j] = mean
		meanVar += variance
	}
	meanVar /= float64(m)

	varPlus := meanVar * float64(n-1) / float64(n)
	if m > 1 {
		varPlus += stat.Variance(means, nil)
	}
	if varPlus == 0 {
		return math.NaN()
	}

	rho := func(lag int) float64 {
		if lag == 0 {
			return 1
		}
		acov := 0.0
		for j, c := range chains {
			acov += autocovariance(c, means[j], lag)
		}
		acov /= float64(m)
		return 1 - (meanVar-acov)/varPlus
	}

	sum := 0.0
	prev := math.Inf(1)
	for lag := 0; lag+1 < n; lag += 2 {
		pair := rho(lag) + rho(lag+1)
		if pair <= 0 {
			break
		}
		pair = math.Min(pair, prev)
		sum += pair
		prev = pair
	}

	tau := -1 + 2*sum
	if tau <= 1 {
		return float64(total)
	}
	return float64(total) / tau
}

// autocovariance at lag, normalised by the chain length.
func autocovariance(x []float64, mean float64, lag int) float64 {
	s := 0.0
	for i := 0; i+lag < len(x); i++ {
		s += (x[i] - mean) * (x[i+lag] - mean)
	}
	return s / float64(len(x))
}
