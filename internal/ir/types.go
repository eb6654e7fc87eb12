package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Support describes the set of values a parameter may take.
type Support string

const (
	// SupportReal allows any finite real value.
	SupportReal Support = "real"

	// SupportPositive allows strictly positive values only.
	SupportPositive Support = "positive"
)

// Contains reports whether x lies inside the support.
func (s Support) Contains(x float64) bool {
	switch s {
	case SupportPositive:
		return x > 0 && !math.IsInf(x, 1)
	default:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	}
}

// Param declares one scalar parameter of a model.
type Param struct {
	Name    string  `json:"name"`
	Support Support `json:"support"`
}

// Layout is the ordered parameter vector of a model.
// Draw values are aligned with Layout indices.
type Layout struct {
	params []Param
	index  map[string]int
}

// NewLayout builds a layout from params. Duplicate names are rejected.
func NewLayout(params []Param) (Layout, error) {
	l := Layout{
		params: make([]Param, len(params)),
		index:  make(map[string]int, len(params)),
	}
	copy(l.params, params)
	for i, p := range params {
		if _, dup := l.index[p.Name]; dup {
			return Layout{}, fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		l.index[p.Name] = i
	}
	return l, nil
}

// Len returns the number of parameters.
func (l Layout) Len() int { return len(l.params) }

// At returns the i-th parameter.
func (l Layout) At(i int) Param { return l.params[i] }

// Params returns a copy of the parameter list.
func (l Layout) Params() []Param {
	out := make([]Param, len(l.params))
	copy(out, l.params)
	return out
}

// Index returns the position of the named parameter.
func (l Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Names returns parameter names in layout order.
func (l Layout) Names() []string {
	names := make([]string, len(l.params))
	for i, p := range l.params {
		names[i] = p.Name
	}
	return names
}

// IndexedName formats a vector element name, e.g. IndexedName("beta", 1) == "beta[1]".
func IndexedName(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

// ParseIndexedName splits "beta[3]" into ("beta", 3, true).
func ParseIndexedName(name string) (string, int, bool) {
	open := strings.IndexByte(name, '[')
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return name, 0, false
	}
	i, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil {
		return name, 0, false
	}
	return name[:open], i, true
}

// ModelDecl is the compiled declaration of an AR(P) model with a horseshoe
// prior over its lag coefficients.
//
//	alpha      ~ Normal(Intercept.Location, Intercept.Scale)
//	tau        ~ HalfCauchy(0, GlobalScale)
//	lambda[i]  ~ HalfCauchy(0, 1)
//	beta[i]    ~ Normal(0, tau * lambda[i])
//	sigma      ~ HalfCauchy(0, SigmaScale)
//	y[t]       ~ Normal(alpha + sum_i beta[i] * y[t-i], sigma)
type ModelDecl struct {
	Name        string      `json:"name"`
	Lags        int         `json:"lags"`
	Intercept   NormalPrior `json:"intercept"`
	GlobalScale float64     `json:"global_scale"`
	SigmaScale  float64     `json:"sigma_scale"`
}

// NormalPrior is a Normal(location, scale) prior declaration.
type NormalPrior struct {
	Location float64 `json:"location"`
	Scale    float64 `json:"scale"`
}

// DefaultModelDecl returns the declaration used when no model file is supplied.
func DefaultModelDecl(lags int) ModelDecl {
	return ModelDecl{
		Name:        "ar",
		Lags:        lags,
		Intercept:   NormalPrior{Location: 0, Scale: 5},
		GlobalScale: 1,
		SigmaScale:  1,
	}
}

// TrueParams are fixed parameter values used to simulate data.
type TrueParams struct {
	Alpha float64   `json:"alpha" yaml:"alpha"`
	Beta  []float64 `json:"beta" yaml:"beta"`
	Sigma float64   `json:"sigma" yaml:"sigma"`
}

// Map flattens the parameters into named values using the model's naming scheme.
func (p TrueParams) Map() map[string]float64 {
	m := map[string]float64{
		"alpha": p.Alpha,
		"sigma": p.Sigma,
	}
	for i, b := range p.Beta {
		m[IndexedName("beta", i+1)] = b
	}
	return m
}
