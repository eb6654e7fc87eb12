package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/diagnostics"
)

// DiagnoseOptions holds flags for the diagnose command.
type DiagnoseOptions struct {
	*RootOptions
	FitID string
}

// DiagnoseResult is the output of the diagnose command.
type DiagnoseResult struct {
	Report   *diagnostics.Report `json:"report"`
	Passed   bool                `json:"passed"`
	Findings []string            `json:"findings,omitempty"`
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagnoseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Compute convergence diagnostics for a fit",
		Long: `Compute split R-hat, effective sample size and divergence counts for
every parameter of a stored fit, store the report, and check it against the
configured gate.

Exit codes:
  0 - Gate met
  1 - Gate unmet (the report is still stored and printed)
  2 - No complete fit to diagnose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FitID, "fit", "", "fit ID (default: latest)")

	return cmd
}

func runDiagnose(opts *DiagnoseOptions, cmd *cobra.Command) (err error) {
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

	report, err := diagnostics.DiagnoseWith(fit, diagnostics.Options{
		Workers: e.cfg.Workers,
		Metrics: e.metrics.Diagnostics,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to diagnose fit", err)
	}
	if err := e.store.WriteDiagnostics(ctx, report); err != nil {
		return WrapExitError(ExitCommandError, "failed to store diagnostics", err)
	}

	findings := report.Check(gateOf(e.cfg))
	maxRhat, minESS := report.Worst()
	e.logger.Info().
		Str("fit_id", fit.ID).
		Float64("max_rhat", maxRhat).
		Float64("min_ess", minESS).
		Int("divergences", report.Divergences).
		Int("findings", len(findings)).
		Msg("fit diagnosed")

	result := DiagnoseResult{
		Report:   report,
		Passed:   len(findings) == 0,
		Findings: findingStrings(findings),
	}

	if e.out.Format == "json" {
		if result.Passed {
			return e.out.Success(result)
		}
		return e.out.Failure(ErrCodeGateUnmet, fmt.Sprintf("gate unmet: %d finding(s)", len(findings)), result)
	}

	outputReportText(e.out, report)
	if result.Passed {
		fmt.Fprintln(e.out.Writer, "✓ Gate met")
		return nil
	}
	fmt.Fprintln(e.out.Writer, "✗ Gate unmet")
	for _, f := range result.Findings {
		fmt.Fprintf(e.out.Writer, "  %s\n", f)
	}
	return e.out.Failure(ErrCodeGateUnmet, fmt.Sprintf("gate unmet: %d finding(s)", len(findings)), result)
}

func outputReportText(out *OutputFormatter, report *diagnostics.Report) {
	out.Printf("Fit %s: %d chains, %d draws, %d divergent\n",
		report.FitID, report.Chains, report.TotalDraws, report.Divergences)
	out.Printf("  %-12s %10s %10s %8s %8s\n", "param", "mean", "sd", "rhat", "ess")
	for _, p := range report.Params {
		out.Printf("  %-12s %10.4g %10.4g %8s %8s\n", p.Name, p.Mean, p.SD, formatStat(p.Rhat, "%.3f"), formatStat(p.ESS, "%.0f"))
	}
}

// formatStat renders a diagnostic, or "-" when it is undefined.
func formatStat(v float64, format string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}
