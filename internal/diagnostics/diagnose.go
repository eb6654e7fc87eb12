package diagnostics

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/metrics"
	"github.com/roach88/arflow/internal/sampler"
)

// minDraws is the shortest chain that still splits into halves of two.
const minDraws = 4

// ParamSummary holds the convergence statistics of one parameter.
type ParamSummary struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`

	// Rhat is the split R-hat; 1 at convergence, +Inf for chains stuck at
	// distinct constant values.
	Rhat float64 `json:"rhat"`

	// ESS is the effective sample size, at most the total number of draws.
	// NaN when every draw is identical.
	ESS float64 `json:"ess"`
}

// MarshalJSON writes non-finite statistics as null.
func (p ParamSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string   `json:"name"`
		Mean float64  `json:"mean"`
		SD   float64  `json:"sd"`
		Rhat *float64 `json:"rhat"`
		ESS  *float64 `json:"ess"`
	}{p.Name, p.Mean, p.SD, finite(p.Rhat), finite(p.ESS)})
}

// UnmarshalJSON reads null statistics back as NaN.
func (p *ParamSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string   `json:"name"`
		Mean float64  `json:"mean"`
		SD   float64  `json:"sd"`
		Rhat *float64 `json:"rhat"`
		ESS  *float64 `json:"ess"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ParamSummary{Name: raw.Name, Mean: raw.Mean, SD: raw.SD, Rhat: math.NaN(), ESS: math.NaN()}
	if raw.Rhat != nil {
		p.Rhat = *raw.Rhat
	}
	if raw.ESS != nil {
		p.ESS = *raw.ESS
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Report is the outcome of Diagnose.
type Report struct {
	FitID      string `json:"fit_id"`
	Chains     int    `json:"chains"`
	TotalDraws int    `json:"total_draws"`

	// Params is in layout order.
	Params []ParamSummary `json:"params"`

	Divergences      int   `json:"divergences"`
	ChainDivergences []int `json:"chain_divergences"`
}

// Param looks up the summary of the named parameter.
func (r *Report) Param(name string) (ParamSummary, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSummary{}, false
}

// Options tunes Diagnose.
type Options struct {
	// Workers bounds concurrent per-parameter evaluation.
	// Zero means GOMAXPROCS.
	Workers int

	// Metrics, when set, receives the computed statistics.
	Metrics *metrics.Diagnostics
}

// Diagnose computes the convergence report of fit with default options.
func Diagnose(fit *ir.Fit) (*Report, error) {
	return DiagnoseWith(fit, Options{})
}

// DiagnoseWith computes the convergence report of fit.
//
// Returns:
//   - *sampler.IncompleteFitError if fit.Complete is false
//   - *InsufficientChainsError for fewer than two chains
//   - an error for unequal or too short chains
func DiagnoseWith(fit *ir.Fit, opts Options) (*Report, error) {
	if !fit.Complete {
		counts := make([]int, len(fit.Chains))
		for i, c := range fit.Chains {
			counts[i] = len(c.Draws)
		}
		return nil, &sampler.IncompleteFitError{FitID: fit.ID, Draws: counts, Err: sampler.ErrIncomplete}
	}
	if len(fit.Chains) < 2 {
		return nil, &InsufficientChainsError{Chains: len(fit.Chains)}
	}
	n := len(fit.Chains[0].Draws)
	for _, c := range fit.Chains {
		if len(c.Draws) != n {
			return nil, fmt.Errorf("fit %s: chain %d has %d draws, chain 0 has %d", fit.ID, c.ID, len(c.Draws), n)
		}
	}
	if n < minDraws {
		return nil, fmt.Errorf("fit %s: need at least %d draws per chain, got %d", fit.ID, minDraws, n)
	}

	report := &Report{
		FitID:            fit.ID,
		Chains:           len(fit.Chains),
		TotalDraws:       fit.TotalDraws(),
		Params:           make([]ParamSummary, fit.Layout.Len()),
		ChainDivergences: make([]int, len(fit.Chains)),
	}
	for i, c := range fit.Chains {
		report.ChainDivergences[i] = c.Divergences()
		report.Divergences += report.ChainDivergences[i]
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for p := 0; p < fit.Layout.Len(); p++ {
		g.Go(func() error {
			report.Params[p] = summarize(fit, p)
			return nil
		})
	}
	_ = g.Wait()

	if opts.Metrics != nil {
		for _, p := range report.Params {
			opts.Metrics.ObserveParam(p.Name, p.Rhat, p.ESS)
		}
		opts.Metrics.ObserveDivergences(report.Divergences)
	}
	return report, nil
}

func summarize(fit *ir.Fit, p int) ParamSummary {
	chains := make([][]float64, len(fit.Chains))
	pooled := make([]float64, 0, fit.TotalDraws())
	for i, c := range fit.Chains {
		chains[i] = c.Column(p)
		pooled = append(pooled, chains[i]...)
	}
	mean, sd := stat.MeanStdDev(pooled, nil)
	split := splitChains(chains)
	return ParamSummary{
		Name: fit.Layout.At(p).Name,
		Mean: mean,
		SD:   sd,
		Rhat: rhat(split),
		ESS:  ess(split, fit.TotalDraws()),
	}
}
