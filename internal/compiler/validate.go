package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/arflow/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrModelNameEmpty     = "E201" // name is required
	ErrModelLagOrder      = "E202" // lag order must be >= 1
	ErrModelNonPositive   = "E203" // scale parameter outside its support
	ErrModelNonFinite     = "E204" // NaN or infinite constant
	ErrModelDuplicateName = "E205" // duplicate model name in one file
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a model declaration against the prior support rules.
// Returns all errors found (does not fail-fast).
//
// Declarations compiled from CUE already satisfy the schema; Validate also
// covers declarations assembled from CLI flags or scenario files.
func Validate(decl ir.ModelDecl) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(decl.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "model name is required and must be non-empty",
			Code:    ErrModelNameEmpty,
		})
	}

	if decl.Lags < 1 {
		errs = append(errs, ValidationError{
			Field:   "lags",
			Message: fmt.Sprintf("lag order must be at least 1, got %d", decl.Lags),
			Code:    ErrModelLagOrder,
		})
	}

	if !finite(decl.Intercept.Location) {
		errs = append(errs, ValidationError{
			Field:   "intercept.location",
			Message: "location must be finite",
			Code:    ErrModelNonFinite,
		})
	}

	scales := []struct {
		field string
		value float64
	}{
		{"intercept.scale", decl.Intercept.Scale},
		{"coefficients.horseshoe.global_scale", decl.GlobalScale},
		{"scale.half_cauchy.scale", decl.SigmaScale},
	}
	for _, s := range scales {
		if !finite(s.value) {
			errs = append(errs, ValidationError{
				Field:   s.field,
				Message: "scale must be finite",
				Code:    ErrModelNonFinite,
			})
			continue
		}
		if s.value <= 0 {
			errs = append(errs, ValidationError{
				Field:   s.field,
				Message: fmt.Sprintf("scale must be strictly positive, got %v", s.value),
				Code:    ErrModelNonPositive,
			})
		}
	}

	return errs
}

// ValidateAll validates a set of declarations and rejects duplicate names.
func ValidateAll(decls []ir.ModelDecl) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, decl := range decls {
		if seen[decl.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("model[%d].name", i),
				Message: fmt.Sprintf("duplicate model name: %q", decl.Name),
				Code:    ErrModelDuplicateName,
			})
		}
		seen[decl.Name] = true

		for _, e := range Validate(decl) {
			e.Field = decl.Name + "." + e.Field
			errs = append(errs, e)
		}
	}
	return errs
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
