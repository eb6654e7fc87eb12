package harness

import (
	"fmt"
	"math"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertMinCoverage:
		p, ok := result.Param(a.Param)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("param %s in result", a.Param), Actual: "not found"}
		}
		if p.Coverage < a.Min {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("coverage of %s >= %.3g", a.Param, a.Min),
				Actual:   fmt.Sprintf("%.3g (%d of %d trials)", p.Coverage, p.Covered, result.Trials),
			}
		}

	case AssertMaxAbsMedian:
		p, ok := result.Param(a.Param)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("param %s in result", a.Param), Actual: "not found"}
		}
		if !(math.Abs(p.MeanMedian) <= a.Max) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("|mean median of %s| <= %.3g", a.Param, a.Max),
				Actual:   fmt.Sprintf("%.4g", p.MeanMedian),
			}
		}

	case AssertLatentCoverage:
		if got := result.LatentCoverage(); got < a.Min {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("latent coverage >= %.3g", a.Min),
				Actual:   fmt.Sprintf("%.3g (%d of %d)", got, result.LatentCovered, result.LatentTotal),
			}
		}

	case AssertGatePassRate:
		if got := result.GatePassRate(); got < a.Min {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("gate pass rate >= %.3g", a.Min),
				Actual:   fmt.Sprintf("%.3g (%d of %d trials)", got, result.GatePassed, result.Trials),
			}
		}

	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}
