package predictive

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/sampler"
)

// DefaultQuantiles are the lower, median and upper quartiles.
var DefaultQuantiles = []float64{0.25, 0.5, 0.75}

func checkComplete(fit *ir.Fit) error {
	if fit.Complete {
		return nil
	}
	counts := make([]int, len(fit.Chains))
	for i, c := range fit.Chains {
		counts[i] = len(c.Draws)
	}
	return &sampler.IncompleteFitError{FitID: fit.ID, Draws: counts, Err: sampler.ErrIncomplete}
}

// latentIndex maps each missing position of ts to its layout index.
func latentIndex(fit *ir.Fit, ts ir.TimeSeries) (map[int]int, error) {
	missing := ts.Missing()
	idx := make(map[int]int, len(missing))
	for _, t := range missing {
		i, ok := fit.Layout.Index(ir.IndexedName("y", t))
		if !ok {
			return nil, fmt.Errorf("fit %s has no imputed value for missing position %d", fit.ID, t)
		}
		idx[t] = i
	}
	return idx, nil
}

// Reconstruct returns one complete series per draw, chains concatenated in
// chain order. Present observations are copied unchanged; missing positions
// take the draw's imputed value.
func Reconstruct(fit *ir.Fit, ts ir.TimeSeries) ([][]float64, error) {
	if err := checkComplete(fit); err != nil {
		return nil, err
	}
	latent, err := latentIndex(fit, ts)
	if err != nil {
		return nil, err
	}

	observed := ts.Values()
	draws := fit.Draws()
	out := make([][]float64, len(draws))
	for k, d := range draws {
		y := make([]float64, len(observed))
		copy(y, observed)
		for t, i := range latent {
			y[t] = d.Values[i]
		}
		out[k] = y
	}
	return out, nil
}

// validateQuantiles returns the quantiles sorted ascending. Every quantile
// must lie strictly inside (0, 1) and appear once.
func validateQuantiles(quantiles []float64) ([]float64, error) {
	if len(quantiles) == 0 {
		return nil, errors.New("at least one quantile is required")
	}
	qs := append([]float64(nil), quantiles...)
	sort.Float64s(qs)
	for i, q := range qs {
		if !(q > 0 && q < 1) {
			return nil, fmt.Errorf("quantile %v outside (0, 1)", q)
		}
		if i > 0 && q == qs[i-1] {
			return nil, fmt.Errorf("duplicate quantile %v", q)
		}
	}
	return qs, nil
}

// Summarize computes the requested quantiles of the reconstructed series at
// every time index, independently per index. Quantiles are empirical: no
// interpolation, no smoothing across indices.
func Summarize(fit *ir.Fit, ts ir.TimeSeries, quantiles []float64) (*ir.ForecastSummary, error) {
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

	missing := make(map[int]bool, ts.MissingCount())
	for _, t := range ts.Missing() {
		missing[t] = true
	}
	summary := &ir.ForecastSummary{Quantiles: qs, Rows: make([]ir.QuantileRow, ts.Len())}
	column := make([]float64, len(series))
	for t := 0; t < ts.Len(); t++ {
		for k, y := range series {
			column[k] = y[t]
		}
		summary.Rows[t] = ir.QuantileRow{T: t, Missing: missing[t], Values: quantilesOf(column, qs)}
	}
	return summary, nil
}

// quantilesOf sorts xs in place and returns its empirical quantiles.
func quantilesOf(xs, qs []float64) []float64 {
	sort.Float64s(xs)
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = stat.Quantile(q, stat.Empirical, xs, nil)
	}
	return out
}

// Flag records the outcome of gating report with gate on summary. The
// summary is reliable only when report passes; otherwise every failed
// condition is listed in Warnings.
func Flag(summary *ir.ForecastSummary, report *diagnostics.Report, gate diagnostics.Gate) {
	findings := report.Check(gate)
	summary.Reliable = len(findings) == 0
	summary.Warnings = nil
	for _, f := range findings {
		summary.Warnings = append(summary.Warnings, f.String())
	}
}
