package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	SeriesID string
}

// ListResult is the output of the list command.
type ListResult struct {
	Series []store.SeriesInfo `json:"series"`
	Fits   []store.FitInfo    `json:"fits"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored series and fits",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SeriesID, "series", "", "only list fits of this series")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) (err error) {
	e, err := opts.newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close(&err)

	ctx := commandContext(cmd)
	if err := e.openStore(); err != nil {
		return err
	}

	var result ListResult
	if result.Series, err = e.store.ListSeries(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to list series", err)
	}
	if result.Fits, err = e.store.ListFits(ctx, opts.SeriesID); err != nil {
		return WrapExitError(ExitCommandError, "failed to list fits", err)
	}

	if e.out.Format == "json" {
		return e.out.Success(result)
	}

	if len(result.Series) == 0 {
		fmt.Fprintln(e.out.Writer, "No series stored.")
		return nil
	}
	fmt.Fprintln(e.out.Writer, "Series:")
	for _, s := range result.Series {
		e.out.Printf("  %s  %-10s %-20s %d observations, %d missing\n", s.ID, s.Source, s.Name, s.Length, s.Missing)
	}
	if len(result.Fits) == 0 {
		return nil
	}
	fmt.Fprintln(e.out.Writer, "Fits:")
	for _, f := range result.Fits {
		state := "complete"
		switch {
		case !f.Complete:
			state = "incomplete"
		case f.Diagnosed:
			state = "diagnosed"
		}
		e.out.Printf("  %s  series %s  %s, %d chains, %s\n", f.ID, f.SeriesID, f.Model, f.Chains, state)
	}
	return nil
}
