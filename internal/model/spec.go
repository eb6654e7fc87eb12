package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/arflow/internal/ir"
)

// Spec is an AR(P) model bound to one observed series.
// A Spec is read-only after New and safe for concurrent use.
type Spec struct {
	decl     ir.ModelDecl
	series   ir.TimeSeries
	layout   ir.Layout
	observed []float64
	missing  []int
}

// New binds decl to ts. Fails with InsufficientDataError when the lag order
// is below 1 or the series has fewer than P+1 observations.
func New(decl ir.ModelDecl, ts ir.TimeSeries) (*Spec, error) {
	if decl.Lags < 1 || ts.Len() < decl.Lags+1 {
		return nil, &InsufficientDataError{Lags: decl.Lags, Length: ts.Len()}
	}
	if decl.Intercept.Scale <= 0 || decl.GlobalScale <= 0 || decl.SigmaScale <= 0 {
		return nil, fmt.Errorf("model %q: prior scales must be strictly positive", decl.Name)
	}

	s := &Spec{
		decl:     decl,
		series:   ts,
		observed: ts.Values(),
		missing:  ts.Missing(),
	}

	layout, err := ir.NewLayout(s.params())
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", decl.Name, err)
	}
	s.layout = layout
	return s, nil
}

func (s *Spec) params() []ir.Param {
	p := s.decl.Lags
	params := make([]ir.Param, 0, 3+2*p+len(s.missing))
	params = append(params, ir.Param{Name: "alpha", Support: ir.SupportReal})
	for j := 1; j <= p; j++ {
		params = append(params, ir.Param{Name: ir.IndexedName("beta", j), Support: ir.SupportReal})
	}
	params = append(params, ir.Param{Name: "tau", Support: ir.SupportPositive})
	for j := 1; j <= p; j++ {
		params = append(params, ir.Param{Name: ir.IndexedName("lambda", j), Support: ir.SupportPositive})
	}
	params = append(params, ir.Param{Name: "sigma", Support: ir.SupportPositive})
	for _, t := range s.missing {
		params = append(params, ir.Param{Name: ir.IndexedName("y", t), Support: ir.SupportReal})
	}
	return params
}

// Decl returns the model declaration.
func (s *Spec) Decl() ir.ModelDecl { return s.decl }

// Series returns the observed series the model is bound to.
func (s *Spec) Series() ir.TimeSeries { return s.series }

// Lags returns the lag order P.
func (s *Spec) Lags() int { return s.decl.Lags }

// Layout returns the parameter layout.
func (s *Spec) Layout() ir.Layout { return s.layout }

// Params returns the declared parameters with their supports.
func (s *Spec) Params() []ir.Param { return s.layout.Params() }

// MissingPositions returns the series indices imputed by the model.
func (s *Spec) MissingPositions() []int {
	out := make([]int, len(s.missing))
	copy(out, s.missing)
	return out
}

// Index offsets into the parameter vector.
func (s *Spec) betaAt(j int) int   { return 1 + j }
func (s *Spec) tauAt() int         { return 1 + s.decl.Lags }
func (s *Spec) lambdaAt(j int) int { return 2 + s.decl.Lags + j }
func (s *Spec) sigmaAt() int       { return 2 + 2*s.decl.Lags }
func (s *Spec) latentAt(k int) int { return 3 + 2*s.decl.Lags + k }

// Params is the parameter vector unpacked into named parts.
type Params struct {
	Alpha  float64
	Beta   []float64
	Tau    float64
	Lambda []float64
	Sigma  float64
	Latent []float64
}

// Unpack splits theta into named parts. Slices alias theta.
func (s *Spec) Unpack(theta []float64) Params {
	p := s.decl.Lags
	return Params{
		Alpha:  theta[0],
		Beta:   theta[s.betaAt(0) : s.betaAt(0)+p],
		Tau:    theta[s.tauAt()],
		Lambda: theta[s.lambdaAt(0) : s.lambdaAt(0)+p],
		Sigma:  theta[s.sigmaAt()],
		Latent: theta[s.latentAt(0):],
	}
}

// DesignRow returns the lag inputs for index t: the zero vector when t < P,
// else (y[t-1], ..., y[t-P]).
func (s *Spec) DesignRow(y []float64, t int) []float64 {
	p := s.decl.Lags
	row := make([]float64, p)
	if t < p {
		return row
	}
	for j := 0; j < p; j++ {
		row[j] = y[t-1-j]
	}
	return row
}

// Location returns the conditional mean of y[t] given its design row.
func (s *Spec) Location(theta, y []float64, t int) float64 {
	p := s.decl.Lags
	mu := theta[0]
	if t < p {
		return mu
	}
	for j := 0; j < p; j++ {
		mu += theta[s.betaAt(j)] * y[t-1-j]
	}
	return mu
}

// Reconstruct writes the full series implied by theta into dst: present
// observations copied unchanged, missing positions from the latent values.
// dst is grown as needed and returned.
func (s *Spec) Reconstruct(theta, dst []float64) []float64 {
	dst = append(dst[:0], s.observed...)
	for k, t := range s.missing {
		dst[t] = theta[s.latentAt(k)]
	}
	return dst
}

// LogPrior evaluates the joint log prior density of theta. Parameters
// outside their support get -Inf. Latent values carry a flat prior; they are
// identified by the likelihood.
func (s *Spec) LogPrior(theta []float64) float64 {
	for i := 0; i < s.layout.Len(); i++ {
		if !s.layout.At(i).Support.Contains(theta[i]) {
			return math.Inf(-1)
		}
	}

	p := s.decl.Lags
	par := s.Unpack(theta)

	lp := normalLogProb(par.Alpha, s.decl.Intercept.Location, s.decl.Intercept.Scale)
	lp += halfCauchyLogProb(par.Tau, s.decl.GlobalScale)
	lp += halfCauchyLogProb(par.Sigma, s.decl.SigmaScale)
	for j := 0; j < p; j++ {
		lp += halfCauchyLogProb(par.Lambda[j], 1)
		lp += normalLogProb(par.Beta[j], 0, par.Tau*par.Lambda[j])
	}
	return lp
}

// LogLikelihood evaluates sum_t log Normal(y[t] | alpha + beta . DesignRow(y, t), sigma)
// over the reconstructed series y.
func (s *Spec) LogLikelihood(theta, y []float64) float64 {
	sigma := theta[s.sigmaAt()]
	if !(sigma > 0) {
		return math.Inf(-1)
	}
	ll := 0.0
	for t := range y {
		ll += normalLogProb(y[t], s.Location(theta, y, t), sigma)
	}
	return ll
}

// LogDensity is LogPrior plus LogLikelihood of the series reconstructed
// from theta. buf is scratch space for the reconstruction.
func (s *Spec) LogDensity(theta, buf []float64) float64 {
	lp := s.LogPrior(theta)
	if math.IsInf(lp, -1) {
		return lp
	}
	return lp + s.LogLikelihood(theta, s.Reconstruct(theta, buf))
}

// Initial draws a dispersed, data-informed starting point. Chains started
// from different rng states start from different points.
func (s *Spec) Initial(rng *rand.Rand) []float64 {
	present := s.series.PresentValues()
	mean, sd := 0.0, 1.0
	if len(present) > 1 {
		mean, sd = stat.MeanStdDev(present, nil)
	}
	if !(sd > 0) {
		sd = 1
	}

	theta := make([]float64, s.layout.Len())
	theta[0] = mean + sd*uniform(rng, -0.5, 0.5)
	for j := 0; j < s.decl.Lags; j++ {
		theta[s.betaAt(j)] = uniform(rng, -0.1, 0.1)
		theta[s.lambdaAt(j)] = math.Exp(uniform(rng, -1, 1))
	}
	theta[s.tauAt()] = s.decl.GlobalScale * math.Exp(uniform(rng, -1, 1))
	theta[s.sigmaAt()] = sd * math.Exp(uniform(rng, -0.5, 0.5))
	for k := range s.missing {
		theta[s.latentAt(k)] = mean + sd*uniform(rng, -1, 1)
	}
	return theta
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func normalLogProb(x, mu, sigma float64) float64 {
	if !(sigma > 0) || math.IsInf(sigma, 1) {
		return math.Inf(-1)
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}.LogProb(x)
}

// halfCauchyLogProb is the log density of HalfCauchy(0, scale) at x > 0.
func halfCauchyLogProb(x, scale float64) float64 {
	if !(x > 0) {
		return math.Inf(-1)
	}
	z := x / scale
	return math.Log(2) - math.Log(math.Pi) - math.Log(scale) - math.Log1p(z*z)
}
