package predictive

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/arflow/internal/ir"
)

// Project draws one posterior predictive path per draw for the horizon
// steps after the observed series and summarizes them per step. Row T
// values are the indices ts.Len() .. ts.Len()+horizon-1.
//
// Each path continues the draw's reconstructed series with its own
// parameters and fresh noise. Deterministic given seed.
func Project(fit *ir.Fit, ts ir.TimeSeries, horizon int, quantiles []float64, seed uint64) (*ir.ForecastSummary, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be at least 1, got %d", horizon)
	}
	qs, err := validateQuantiles(quantiles)
	if err != nil {
		return nil, err
	}
	series, err := Reconstruct(fit, ts)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("fit %s has no draws", fit.ID)
	}

	p := fit.Model.Lags
	alpha, ok := fit.Layout.Index("alpha")
	if !ok {
		return nil, fmt.Errorf("fit %s has no alpha", fit.ID)
	}
	sigma, ok := fit.Layout.Index("sigma")
	if !ok {
		return nil, fmt.Errorf("fit %s has no sigma", fit.ID)
	}
	beta := make([]int, p)
	for j := range beta {
		if beta[j], ok = fit.Layout.Index(ir.IndexedName("beta", j+1)); !ok {
			return nil, fmt.Errorf("fit %s has no %s", fit.ID, ir.IndexedName("beta", j+1))
		}
	}

	src := rand.NewPCG(seed, 0xf0ca57)
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	n := ts.Len()
	paths := make([][]float64, len(series))
	for k, d := range fit.Draws() {
		y := append(series[k], make([]float64, horizon)...)
		for t := n; t < n+horizon; t++ {
			mu := d.Values[alpha]
			for j, b := range beta {
				if t-1-j >= 0 {
					mu += d.Values[b] * y[t-1-j]
				}
			}
			y[t] = mu + d.Values[sigma]*noise.Rand()
		}
		paths[k] = y[n:]
	}

	summary := &ir.ForecastSummary{Quantiles: qs, Rows: make([]ir.QuantileRow, horizon)}
	column := make([]float64, len(paths))
	for h := 0; h < horizon; h++ {
		for k, path := range paths {
			column[k] = path[h]
		}
		summary.Rows[h] = ir.QuantileRow{T: n + h, Values: quantilesOf(column, qs)}
	}
	return summary, nil
}
