package ir

// Draw is one posterior sample. Values is aligned with the owning Fit's
// Layout. A Draw must not be modified after the sampler produced it.
type Draw struct {
	// Index is the position of the draw within its chain (0-based, post-warmup).
	Index int `json:"index"`

	// Values holds one value per parameter in layout order.
	Values []float64 `json:"values"`

	// Divergent is the backend's divergence flag for the transition.
	Divergent bool `json:"divergent"`

	// Imputed is the number of missing positions this draw filled in.
	Imputed int `json:"imputed"`
}

// Chain is the ordered draw sequence of one independent sampler run.
// Order is meaningful and preserved for autocorrelation analysis.
type Chain struct {
	ID    int    `json:"id"`
	Draws []Draw `json:"draws"`
}

// Divergences counts divergent draws in the chain.
func (c Chain) Divergences() int {
	n := 0
	for _, d := range c.Draws {
		if d.Divergent {
			n++
		}
	}
	return n
}

// Column returns the draws of parameter i in chain order.
func (c Chain) Column(i int) []float64 {
	out := make([]float64, len(c.Draws))
	for k, d := range c.Draws {
		out[k] = d.Values[i]
	}
	return out
}

// Fit is the set of chains produced for one model and one series.
// A Fit owns its chains; chains are never shared across fits.
type Fit struct {
	ID       string    `json:"id"`
	SeriesID string    `json:"series_id"`
	Model    ModelDecl `json:"model"`
	Layout   Layout    `json:"-"`
	Chains   []Chain   `json:"chains"`

	// Warmup and Seed record the sampler request for reproducibility.
	Warmup int    `json:"warmup"`
	Seed   uint64 `json:"seed"`

	// Complete is false when sampling was cancelled before every chain
	// finished. An incomplete fit is unusable for diagnostics or forecasting.
	Complete bool `json:"complete"`
}

// TotalDraws returns the number of draws summed across chains.
func (f *Fit) TotalDraws() int {
	n := 0
	for _, c := range f.Chains {
		n += len(c.Draws)
	}
	return n
}

// Draws returns every draw, chains concatenated in chain order.
func (f *Fit) Draws() []Draw {
	out := make([]Draw, 0, f.TotalDraws())
	for _, c := range f.Chains {
		out = append(out, c.Draws...)
	}
	return out
}

// Column returns the pooled draws of the named parameter across all chains.
func (f *Fit) Column(name string) ([]float64, bool) {
	i, ok := f.Layout.Index(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, f.TotalDraws())
	for _, c := range f.Chains {
		for _, d := range c.Draws {
			out = append(out, d.Values[i])
		}
	}
	return out, true
}

// ForecastSummary holds per-time-index quantiles of the reconstructed series.
type ForecastSummary struct {
	// Quantiles are the requested probabilities, ascending.
	Quantiles []float64 `json:"quantiles"`

	// Rows has one entry per time index.
	Rows []QuantileRow `json:"rows"`

	// Reliable is set once the fit behind the summary passed a diagnostics
	// gate. A summary nobody checked is not reliable.
	Reliable bool `json:"reliable"`

	// Warnings lists the failed gate conditions, if any.
	Warnings []string `json:"warnings,omitempty"`
}

// QuantileRow is the quantile vector at time index T.
type QuantileRow struct {
	T       int       `json:"t"`
	Missing bool      `json:"missing"`
	Values  []float64 `json:"values"`
}

// Lower returns the smallest requested quantile.
func (r QuantileRow) Lower() float64 { return r.Values[0] }

// Upper returns the largest requested quantile.
func (r QuantileRow) Upper() float64 { return r.Values[len(r.Values)-1] }
