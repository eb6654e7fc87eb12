package diagnostics

import (
	"fmt"
	"math"
)

// Gate holds the thresholds a fit must meet before its output is trusted.
type Gate struct {
	MaxRhat        float64 `json:"max_rhat" yaml:"max_rhat"`
	MinESS         float64 `json:"min_ess" yaml:"min_ess"`
	MaxDivergences int     `json:"max_divergences" yaml:"max_divergences"`
}

// DefaultGate returns conventional thresholds.
func DefaultGate() Gate {
	return Gate{MaxRhat: 1.01, MinESS: 400, MaxDivergences: 0}
}

// Condition names a gate check.
type Condition string

const (
	ConditionRhat        Condition = "rhat"
	ConditionESS         Condition = "ess"
	ConditionDivergences Condition = "divergences"
)

// Finding is one failed gate condition.
type Finding struct {
	Condition Condition `json:"condition"`

	// Param is empty for fit-wide conditions.
	Param string `json:"param,omitempty"`

	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// String renders the finding for humans.
func (f Finding) String() string {
	switch f.Condition {
	case ConditionRhat:
		return fmt.Sprintf("rhat for %s is %.4g (max %.4g)", f.Param, f.Value, f.Threshold)
	case ConditionESS:
		return fmt.Sprintf("ess for %s is %.4g (min %.4g)", f.Param, f.Value, f.Threshold)
	default:
		return fmt.Sprintf("%d divergent transitions (max %d)", int(f.Value), int(f.Threshold))
	}
}

// Check returns every gate condition r fails, parameters in layout order
// followed by divergences. An empty result means the fit passed.
// Non-finite statistics always fail.
func (r *Report) Check(g Gate) []Finding {
	findings := []Finding{}
	for _, p := range r.Params {
		if !(p.Rhat <= g.MaxRhat) {
			findings = append(findings, Finding{Condition: ConditionRhat, Param: p.Name, Value: p.Rhat, Threshold: g.MaxRhat})
		}
		if !(p.ESS >= g.MinESS) {
			findings = append(findings, Finding{Condition: ConditionESS, Param: p.Name, Value: p.ESS, Threshold: g.MinESS})
		}
	}
	if r.Divergences > g.MaxDivergences {
		findings = append(findings, Finding{
			Condition: ConditionDivergences,
			Value:     float64(r.Divergences),
			Threshold: float64(g.MaxDivergences),
		})
	}
	return findings
}

// Passed reports whether r meets every condition of g.
func (r *Report) Passed(g Gate) bool {
	return len(r.Check(g)) == 0
}

// Worst returns the largest R-hat and the smallest ESS in the report.
func (r *Report) Worst() (maxRhat, minESS float64) {
	maxRhat, minESS = math.Inf(-1), math.Inf(1)
	for _, p := range r.Params {
		if p.Rhat > maxRhat || math.IsNaN(p.Rhat) {
			maxRhat = p.Rhat
		}
		if p.ESS < minESS || math.IsNaN(p.ESS) {
			minESS = p.ESS
		}
	}
	return maxRhat, minESS
}
