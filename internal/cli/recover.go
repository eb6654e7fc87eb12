package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/predictive"
)

// RecoverOptions holds flags for the recover command.
type RecoverOptions struct {
	*RootOptions
	FitID string
	Width float64
}

// RecoverResult is the output of the recover command.
type RecoverResult struct {
	FitID    string                `json:"fit_id"`
	SeriesID string                `json:"series_id"`
	Width    float64               `json:"width"`
	Params   []predictive.Coverage `json:"params"`
	Covered  int                   `json:"covered"`
	Total    int                   `json:"total"`
	Findings []string              `json:"findings,omitempty"`
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Check a fit of simulated data against the true parameters",
		Long: `Check whether each true parameter value of a simulated series, including
the true value of every masked observation, lies inside the central posterior
interval of the given width.

Exit codes:
  0 - Every true value covered and the gate met
  1 - A true value missed, or the gate unmet
  2 - The series has no known truth, or a prior stage has not run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FitID, "fit", "", "fit ID (default: latest)")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "central interval width in (0, 1) (default from config)")

	return cmd
}

func runRecover(opts *RecoverOptions, cmd *cobra.Command) (err error) {
	e, err := opts.newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close(&err)

	ctx := commandContext(cmd)
	if err := e.openStore(); err != nil {
		return err
	}
	fit, err := e.loadFit(ctx, opts.FitID)
	if err != nil {
		return err
	}
	rec, err := e.loadSeries(ctx, fit.SeriesID)
	if err != nil {
		return err
	}
	if len(rec.Truth) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("series %s has no known parameters; recover needs a simulated series", rec.ID))
	}
	report, err := e.loadReport(ctx, fit.ID)
	if err != nil {
		return err
	}

	width := e.cfg.Recovery.Width
	if cmd.Flags().Changed("width") {
		width = opts.Width
	}
	coverage, err := predictive.RecoveryCheck(fit, rec.Truth, width)
	if err != nil {
		return WrapExitError(ExitCommandError, "recovery check failed", err)
	}

	result := RecoverResult{
		FitID:    fit.ID,
		SeriesID: rec.ID,
		Width:    width,
		Params:   coverage,
		Total:    len(coverage),
		Findings: findingStrings(report.Check(gateOf(e.cfg))),
	}
	for _, c := range coverage {
		if c.Covered {
			result.Covered++
		}
	}
	e.logger.Info().
		Str("fit_id", fit.ID).
		Float64("width", width).
		Int("covered", result.Covered).
		Int("total", result.Total).
		Msg("recovery checked")

	missed := result.Covered < result.Total
	var msg string
	switch {
	case missed:
		msg = fmt.Sprintf("%d of %d true values outside the %g interval", result.Total-result.Covered, result.Total, width)
	case len(result.Findings) > 0:
		msg = "gate unmet"
	}

	if e.out.Format == "json" {
		switch {
		case missed:
			return e.out.Failure(ErrCodeNotCovered, msg, result)
		case msg != "":
			return e.out.Failure(ErrCodeGateUnmet, msg, result)
		}
		return e.out.Success(result)
	}

	out := e.out
	out.Printf("Fit %s, %g central interval:\n", fit.ID, width)
	out.Printf("  %-12s %10s %10s %10s %10s\n", "param", "truth", "lower", "median", "upper")
	for _, c := range coverage {
		mark := "✓"
		if !c.Covered {
			mark = "✗"
		}
		out.Printf("%s %-12s %10.4f %10.4f %10.4f %10.4f\n", mark, c.Param, c.Truth, c.Lower, c.Median, c.Upper)
	}
	out.Printf("%d of %d covered\n", result.Covered, result.Total)
	for _, f := range result.Findings {
		fmt.Fprintf(out.Writer, "  %s\n", f)
	}
	switch {
	case missed:
		return out.Failure(ErrCodeNotCovered, msg, result)
	case msg != "":
		return out.Failure(ErrCodeGateUnmet, msg, result)
	}
	return nil
}
