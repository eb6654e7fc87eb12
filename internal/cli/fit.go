package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/model"
	"github.com/roach88/arflow/internal/sampler"
)

// FitOptions holds flags for the fit command.
type FitOptions struct {
	*RootOptions
	Model    ModelFlags
	SeriesID string

	// Zero means the config file's value.
	Chains int
	Draws  int
	Warmup int
	Seed   uint64
}

// FitResult is the output of the fit command.
type FitResult struct {
	FitID       string `json:"fit_id"`
	SeriesID    string `json:"series_id"`
	Model       string `json:"model"`
	Params      int    `json:"params"`
	Imputed     int    `json:"imputed"`
	Chains      int    `json:"chains"`
	Draws       int    `json:"draws"`
	Divergences int    `json:"divergences"`
	Complete    bool   `json:"complete"`
}

// NewFitCommand creates the fit command.
func NewFitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Sample the posterior of a stored series",
		Long: `Fit an AR(P) model with a horseshoe prior to a stored series.

Missing observations become latent parameters and are imputed by the
sampler. Chains run concurrently on the configured number of workers.
Interrupting the command stores the draws collected so far as an
incomplete fit, which later stages refuse.

Without --model or --lags, the lag order of a simulated series is taken
from its true coefficients.

Examples:
  arflow fit --lags 6
  arflow fit --series 0190... --model models.cue --model-name ar6 --chains 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(opts, cmd)
		},
	}

	opts.Model.register(cmd)
	cmd.Flags().StringVar(&opts.SeriesID, "series", "", "series ID (default: latest)")
	cmd.Flags().IntVar(&opts.Chains, "chains", 0, "number of chains (default from config)")
	cmd.Flags().IntVar(&opts.Draws, "draws", 0, "draws per chain after warmup (default from config)")
	cmd.Flags().IntVar(&opts.Warmup, "warmup", 0, "warmup iterations per chain (default from config)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (default from config)")

	return cmd
}

func runFit(opts *FitOptions, cmd *cobra.Command) (err error) {
	e, err := opts.newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close(&err)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.openStore(); err != nil {
		return err
	}
	rec, err := e.loadSeries(ctx, opts.SeriesID)
	if err != nil {
		return err
	}

	lags := opts.Model.Lags
	if opts.Model.Path == "" && lags == 0 {
		lags = truthLags(rec.Truth)
	}
	decl, err := resolveModel(opts.Model.Path, opts.Model.Name, lags)
	if err != nil {
		return err
	}
	spec, err := model.New(decl, rec.Series)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid model for series", err)
	}

	req := sampler.Request{
		Chains:  firstNonZero(opts.Chains, e.cfg.Sampler.Chains),
		Draws:   firstNonZero(opts.Draws, e.cfg.Sampler.Draws),
		Warmup:  e.cfg.Sampler.Warmup,
		Seed:    e.cfg.Sampler.Seed,
		Workers: e.cfg.Workers,
	}
	if cmd.Flags().Changed("warmup") {
		req.Warmup = opts.Warmup
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = opts.Seed
	}
	if err := req.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid sampler settings", err)
	}

	smp := sampler.New(opts.backend(e.cfg),
		sampler.WithLogger(e.logger),
		sampler.WithMetrics(e.metrics.Sampler),
		sampler.WithIDGenerator(e.ids),
	)
	fit, fitErr := smp.Fit(ctx, spec, rec.ID, req)

	var incomplete *sampler.IncompleteFitError
	switch {
	case errors.As(fitErr, &incomplete):
		// Keep the partial draws; later stages refuse them.
		if err := e.store.WriteFit(context.WithoutCancel(ctx), fit); err != nil {
			return WrapExitError(ExitCommandError, "failed to store incomplete fit", err)
		}
		_ = outputFit(e.out, fit, len(spec.MissingPositions()))
		return WrapExitError(ExitFailure, fmt.Sprintf("%s: fit %s stopped early", ErrCodeIncomplete, fit.ID), fitErr)
	case fitErr != nil:
		return WrapExitError(ExitFailure, "fit failed", fitErr)
	}

	if err := e.store.WriteFit(ctx, fit); err != nil {
		return WrapExitError(ExitCommandError, "failed to store fit", err)
	}
	e.logger.Info().Str("fit_id", fit.ID).Str("series_id", rec.ID).Msg("fit stored")

	return outputFit(e.out, fit, len(spec.MissingPositions()))
}

func outputFit(out *OutputFormatter, fit *ir.Fit, imputed int) error {
	result := FitResult{
		FitID:    fit.ID,
		SeriesID: fit.SeriesID,
		Model:    fit.Model.Name,
		Params:   fit.Layout.Len(),
		Imputed:  imputed,
		Chains:   len(fit.Chains),
		Draws:    fit.TotalDraws(),
		Complete: fit.Complete,
	}
	for _, c := range fit.Chains {
		result.Divergences += c.Divergences()
	}

	if out.Format == "json" {
		return out.Success(result)
	}
	mark := "✓"
	if !fit.Complete {
		mark = "✗"
	}
	fmt.Fprintf(out.Writer, "%s Fit %s of series %s\n", mark, result.FitID, result.SeriesID)
	out.Printf("  model %s: %d parameters, %d imputed\n", result.Model, result.Params, result.Imputed)
	out.Printf("  %d chains, %d draws, %d divergent\n", result.Chains, result.Draws, result.Divergences)
	return nil
}

// truthLags counts the true lag coefficients of a simulated series.
func truthLags(truth map[string]float64) int {
	n := 0
	for name := range truth {
		if base, _, ok := ir.ParseIndexedName(name); ok && base == "beta" {
			n++
		}
	}
	return n
}

func firstNonZero(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
