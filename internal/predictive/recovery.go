package predictive

import (
	"fmt"
	"sort"

	"github.com/roach88/arflow/internal/ir"
)

// Coverage is the outcome of checking one known parameter value against its
// central posterior interval.
type Coverage struct {
	Param   string  `json:"param"`
	Truth   float64 `json:"truth"`
	Lower   float64 `json:"lower"`
	Median  float64 `json:"median"`
	Upper   float64 `json:"upper"`
	Covered bool    `json:"covered"`
}

// RecoveryCheck reports, for every parameter in truth, whether its true value
// lies inside the central posterior interval of the given width. Results are
// in layout order. Width must lie strictly inside (0, 1).
func RecoveryCheck(fit *ir.Fit, truth map[string]float64, width float64) ([]Coverage, error) {
	if !(width > 0 && width < 1) {
		return nil, fmt.Errorf("interval width %v outside (0, 1)", width)
	}
	if err := checkComplete(fit); err != nil {
		return nil, err
	}

	type target struct {
		index int
		name  string
		value float64
	}
	targets := make([]target, 0, len(truth))
	for name, v := range truth {
		i, ok := fit.Layout.Index(name)
		if !ok {
			return nil, fmt.Errorf("fit %s has no parameter %q", fit.ID, name)
		}
		targets = append(targets, target{index: i, name: name, value: v})
	}
	sort.Slice(targets, func(a, b int) bool { return targets[a].index < targets[b].index })

	qs := []float64{(1 - width) / 2, 0.5, (1 + width) / 2}
	out := make([]Coverage, 0, len(targets))
	for _, tg := range targets {
		column, _ := fit.Column(tg.name)
		if len(column) == 0 {
			return nil, fmt.Errorf("fit %s has no draws", fit.ID)
		}
		q := quantilesOf(column, qs)
		out = append(out, Coverage{
			Param:   tg.name,
			Truth:   tg.value,
			Lower:   q[0],
			Median:  q[1],
			Upper:   q[2],
			Covered: q[0] <= tg.value && tg.value <= q[2],
		})
	}
	return out, nil
}

// CoveredCount returns how many coverages hold.
func CoveredCount(cs []Coverage) int {
	n := 0
	for _, c := range cs {
		if c.Covered {
			n++
		}
	}
	return n
}
