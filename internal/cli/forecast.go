package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/predictive"
)

// ForecastOptions holds flags for the forecast command.
type ForecastOptions struct {
	*RootOptions
	FitID     string
	Quantiles []float64
	Horizon   int
}

// ForecastResult is the output of the forecast command.
type ForecastResult struct {
	FitID      string              `json:"fit_id"`
	SeriesID   string              `json:"series_id"`
	Series     *ir.ForecastSummary `json:"series"`
	Projection *ir.ForecastSummary `json:"projection,omitempty"`
}

// NewForecastCommand creates the forecast command.
func NewForecastCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForecastOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Summarize the posterior predictive series",
		Long: `Reconstruct the series once per posterior draw, with imputed values at
missing positions, and report the requested quantiles at every time index.
With --horizon, also project that many steps past the end of the series.

The summary is marked reliable only when the fit's stored diagnostics meet
the configured gate. An unreliable summary is still printed, with the unmet
conditions, and the command exits 1.

Examples:
  arflow forecast
  arflow forecast --quantiles 0.05,0.5,0.95 --horizon 12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FitID, "fit", "", "fit ID (default: latest)")
	cmd.Flags().Float64SliceVar(&opts.Quantiles, "quantiles", nil, "quantile probabilities (default from config)")
	cmd.Flags().IntVar(&opts.Horizon, "horizon", 0, "steps to project past the series (default from config)")

	return cmd
}

func runForecast(opts *ForecastOptions, cmd *cobra.Command) (err error) {
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
	report, err := e.loadReport(ctx, fit.ID)
	if err != nil {
		return err
	}
	rec, err := e.loadSeries(ctx, fit.SeriesID)
	if err != nil {
		return err
	}

	quantiles := e.cfg.Forecast.Quantiles
	if len(opts.Quantiles) > 0 {
		quantiles = opts.Quantiles
	}
	horizon := e.cfg.Forecast.Horizon
	if cmd.Flags().Changed("horizon") {
		horizon = opts.Horizon
	}
	gate := gateOf(e.cfg)

	summary, err := predictive.Summarize(fit, rec.Series, quantiles)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize fit", err)
	}
	predictive.Flag(summary, report, gate)

	result := ForecastResult{FitID: fit.ID, SeriesID: rec.ID, Series: summary}
	if horizon > 0 {
		proj, err := predictive.Project(fit, rec.Series, horizon, quantiles, e.cfg.Forecast.Seed)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to project fit", err)
		}
		predictive.Flag(proj, report, gate)
		result.Projection = proj
	}

	e.logger.Info().
		Str("fit_id", fit.ID).
		Int("horizon", horizon).
		Bool("reliable", summary.Reliable).
		Msg("forecast summarized")

	if e.out.Format == "json" {
		if summary.Reliable {
			return e.out.Success(result)
		}
		return e.out.Failure(ErrCodeGateUnmet, "forecast unreliable: gate unmet", result)
	}

	outputSummaryText(e.out, "Series", summary, rec.Timestamps)
	if result.Projection != nil {
		outputSummaryText(e.out, "Projection", result.Projection, nil)
	}
	if summary.Reliable {
		fmt.Fprintln(e.out.Writer, "✓ Reliable")
		return nil
	}
	fmt.Fprintln(e.out.Writer, "✗ Unreliable")
	for _, w := range summary.Warnings {
		fmt.Fprintf(e.out.Writer, "  %s\n", w)
	}
	return e.out.Failure(ErrCodeGateUnmet, "forecast unreliable: gate unmet", result)
}

func outputSummaryText(out *OutputFormatter, title string, summary *ir.ForecastSummary, labels []string) {
	header := make([]string, len(summary.Quantiles))
	for i, q := range summary.Quantiles {
		header[i] = fmt.Sprintf("%10s", fmt.Sprintf("q%g", q))
	}
	fmt.Fprintf(out.Writer, "%s:\n", title)
	fmt.Fprintf(out.Writer, "  %-20s %s\n", "t", strings.Join(header, " "))
	for _, row := range summary.Rows {
		label := fmt.Sprint(row.T)
		if row.T < len(labels) && labels[row.T] != "" {
			label = labels[row.T]
		}
		if row.Missing {
			label += " *"
		}
		out.Printf("  %-20s", label)
		for _, v := range row.Values {
			out.Printf(" %10.4f", v)
		}
		fmt.Fprintln(out.Writer)
	}
}
