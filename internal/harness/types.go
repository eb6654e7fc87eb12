package harness

// Result is the aggregated outcome of a recovery study.
type Result struct {
	Scenario string `json:"scenario"`
	Trials   int    `json:"trials"`

	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Params holds one entry per fixed parameter, in layout order.
	Params []ParamRecovery `json:"params"`

	// LatentCovered counts covered latent values over all trials;
	// LatentTotal counts all latent values checked.
	LatentCovered int `json:"latent_covered"`
	LatentTotal   int `json:"latent_total"`

	// GatePassed counts the trials whose diagnostics passed the gate.
	GatePassed int `json:"gate_passed"`

	Errors []string `json:"errors,omitempty"`
}

// ParamRecovery aggregates the coverage of one fixed parameter over trials.
type ParamRecovery struct {
	Name  string  `json:"name"`
	Truth float64 `json:"truth"`

	Covered  int     `json:"covered"`
	Coverage float64 `json:"coverage"`

	// MeanMedian is the mean over trials of the posterior median.
	MeanMedian float64 `json:"mean_median"`

	// MeanWidth is the mean over trials of the interval width.
	MeanWidth float64 `json:"mean_width"`
}

// NewResult creates a passing result for a scenario.
func NewResult(scenario string, trials int) *Result {
	return &Result{
		Scenario: scenario,
		Trials:   trials,
		Pass:     true,
		Params:   []ParamRecovery{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Param returns the recovery entry for name.
func (r *Result) Param(name string) (ParamRecovery, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamRecovery{}, false
}

// LatentCoverage is the fraction of covered latent values, or 1 when the
// study had none.
func (r *Result) LatentCoverage() float64 {
	if r.LatentTotal == 0 {
		return 1
	}
	return float64(r.LatentCovered) / float64(r.LatentTotal)
}

// GatePassRate is the fraction of trials that passed the diagnostics gate.
func (r *Result) GatePassRate() float64 {
	if r.Trials == 0 {
		return 0
	}
	return float64(r.GatePassed) / float64(r.Trials)
}
