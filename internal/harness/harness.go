package harness

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/metrics"
	"github.com/roach88/arflow/internal/model"
	"github.com/roach88/arflow/internal/predictive"
	"github.com/roach88/arflow/internal/sampler"
	"github.com/roach88/arflow/internal/simulate"
)

// Harness runs recovery studies against one sampler backend.
type Harness struct {
	backend sampler.Backend
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger for per-trial events.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithMetrics routes sampler and diagnostics metrics of every trial to reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(h *Harness) {
		h.metrics = reg
	}
}

// New creates a Harness that fits every trial with backend.
func New(backend sampler.Backend, opts ...Option) *Harness {
	h := &Harness{
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with backend and default options.
func Run(ctx context.Context, scenario *Scenario, backend sampler.Backend) (*Result, error) {
	return New(backend).Run(ctx, scenario)
}

// trialOutcome is what one trial contributes to the aggregate.
type trialOutcome struct {
	coverage   []predictive.Coverage
	gatePassed bool
}

// Run executes every trial of scenario and evaluates its assertions.
//
// Trials run one after another; chains within a trial run on
// scenario.Sampler.Workers goroutines. A sampler or diagnostics error aborts
// the study. Assertion failures do not: they are recorded on the result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	decl := scenario.Model.Decl()
	gate := diagnostics.DefaultGate()
	if scenario.Gate != nil {
		gate = *scenario.Gate
	}

	var samplerOpts []sampler.Option
	diagOpts := diagnostics.Options{}
	samplerOpts = append(samplerOpts, sampler.WithLogger(h.logger))
	if h.metrics != nil {
		samplerOpts = append(samplerOpts, sampler.WithMetrics(h.metrics.Sampler))
		diagOpts.Metrics = h.metrics.Diagnostics
	}
	smp := sampler.New(h.backend, samplerOpts...)

	logger := h.logger.With().Str("scenario", scenario.Name).Logger()
	logger.Info().Int("trials", scenario.Trials).Msg("study started")

	outcomes := make([]trialOutcome, 0, scenario.Trials)
	for trial := 0; trial < scenario.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("study %s stopped at trial %d: %w", scenario.Name, trial, err)
		}
		out, err := h.runTrial(ctx, smp, scenario, decl, gate, diagOpts, trial)
		if err != nil {
			return nil, fmt.Errorf("study %s trial %d: %w", scenario.Name, trial, err)
		}
		logger.Debug().
			Int("trial", trial).
			Int("covered", predictive.CoveredCount(out.coverage)).
			Int("checked", len(out.coverage)).
			Bool("gate_passed", out.gatePassed).
			Msg("trial complete")
		outcomes = append(outcomes, out)
	}

	result := aggregate(scenario, outcomes)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	logger.Info().Bool("pass", result.Pass).Int("gate_passed", result.GatePassed).Msg("study complete")
	return result, nil
}

func (h *Harness) runTrial(ctx context.Context, smp *sampler.Sampler, scenario *Scenario, decl ir.ModelDecl, gate diagnostics.Gate, diagOpts diagnostics.Options, trial int) (trialOutcome, error) {
	seed := scenario.Seed + uint64(trial)
	sim, err := simulate.Simulate(decl, scenario.Truth, scenario.Length, scenario.MissingFraction, seed)
	if err != nil {
		return trialOutcome{}, err
	}
	spec, err := model.New(decl, sim.Series)
	if err != nil {
		return trialOutcome{}, err
	}
	fit, err := smp.Fit(ctx, spec, fmt.Sprintf("%s-%d", scenario.Name, trial), sampler.Request{
		Chains:  scenario.Sampler.Chains,
		Draws:   scenario.Sampler.Draws,
		Warmup:  scenario.Sampler.Warmup,
		Seed:    seed,
		Workers: scenario.Sampler.Workers,
	})
	if err != nil {
		return trialOutcome{}, err
	}
	report, err := diagnostics.DiagnoseWith(fit, diagOpts)
	if err != nil {
		return trialOutcome{}, err
	}
	coverage, err := predictive.RecoveryCheck(fit, sim.Truth, scenario.Width)
	if err != nil {
		return trialOutcome{}, err
	}
	return trialOutcome{coverage: coverage, gatePassed: report.Passed(gate)}, nil
}

// fixedParams lists the parameters whose truth is the same in every trial,
// in layout order.
func fixedParams(lags int) []string {
	names := make([]string, 0, lags+2)
	names = append(names, "alpha")
	for i := 1; i <= lags; i++ {
		names = append(names, ir.IndexedName("beta", i))
	}
	return append(names, "sigma")
}

func aggregate(scenario *Scenario, outcomes []trialOutcome) *Result {
	result := NewResult(scenario.Name, len(outcomes))
	truth := scenario.Truth.Map()
	fixed := make(map[string]bool)

	for _, name := range fixedParams(scenario.Model.Lags) {
		fixed[name] = true
		medians := make([]float64, 0, len(outcomes))
		widths := make([]float64, 0, len(outcomes))
		covered := 0
		for _, out := range outcomes {
			for _, c := range out.coverage {
				if c.Param != name {
					continue
				}
				medians = append(medians, c.Median)
				widths = append(widths, c.Upper-c.Lower)
				if c.Covered {
					covered++
				}
			}
		}
		result.Params = append(result.Params, ParamRecovery{
			Name:       name,
			Truth:      truth[name],
			Covered:    covered,
			Coverage:   float64(covered) / float64(len(outcomes)),
			MeanMedian: mean(medians),
			MeanWidth:  mean(widths),
		})
	}

	for _, out := range outcomes {
		for _, c := range out.coverage {
			if fixed[c.Param] {
				continue
			}
			result.LatentTotal++
			if c.Covered {
				result.LatentCovered++
			}
		}
		if out.gatePassed {
			result.GatePassed++
		}
	}
	return result
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Sum(xs) / float64(len(xs))
}
