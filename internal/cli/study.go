package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/harness"
)

// StudyOptions holds flags for the study command.
type StudyOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string          `json:"name"`
	Pass   bool            `json:"pass"`
	Result *harness.Result `json:"result,omitempty"`
	Errors []string        `json:"errors,omitempty"`
}

// StudyResult holds the overall study result.
type StudyResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewStudyCommand creates the study command.
func NewStudyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StudyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "study <scenario.yaml|dir>",
		Short: "Run parameter-recovery studies",
		Long: `Run recovery-study scenarios. Each scenario simulates many series from
known parameters, fits each one, and checks how often the posterior
intervals cover the truth.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  arflow study ./scenarios
  arflow study ./scenarios --filter "sparse-*"
  arflow study sparse_ar6.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudy(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runStudy(opts *StudyOptions, path string, cmd *cobra.Command) (err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}

	files := []string{path}
	if info.IsDir() {
		files, err = findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
	}

	e, err := opts.newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close(&err)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := harness.New(opts.backend(e.cfg),
		harness.WithLogger(e.logger),
		harness.WithMetrics(e.metrics),
	)

	result := StudyResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid scenario", err)
		}
		res, err := h.Run(ctx, scenario)
		if ctx.Err() != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("%s: study interrupted", ErrCodeIncomplete), err)
		}

		sr := ScenarioResult{Name: scenario.Name}
		if err != nil {
			sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		} else {
			sr.Pass = res.Pass
			sr.Result = res
			sr.Errors = res.Errors
		}
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)

		if e.out.Format != "json" {
			outputScenarioText(e.out, sr)
		}
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if e.out.Format == "json" {
		if result.Failed > 0 {
			return e.out.Failure(ErrCodeStudyFailed, msg, result)
		}
		return e.out.Success(result)
	}

	if result.Total == 0 {
		fmt.Fprintln(e.out.Writer, "No scenarios found.")
		return nil
	}
	fmt.Fprintln(e.out.Writer)
	fmt.Fprintf(e.out.Writer, "Study Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return e.out.Failure(ErrCodeStudyFailed, msg, result)
	}
	fmt.Fprintln(e.out.Writer, "✓ All scenarios passed")
	return nil
}

func outputScenarioText(out *OutputFormatter, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	fmt.Fprintf(out.Writer, "%s %s\n", mark, sr.Name)
	if sr.Result != nil {
		for _, p := range sr.Result.Params {
			out.Printf("  %-12s truth %7.3f  covered %d/%d  mean median %7.3f  mean width %6.3f\n",
				p.Name, p.Truth, p.Covered, sr.Result.Trials, p.MeanMedian, p.MeanWidth)
		}
		if sr.Result.LatentTotal > 0 {
			out.Printf("  latent       covered %d/%d\n", sr.Result.LatentCovered, sr.Result.LatentTotal)
		}
		out.Printf("  gate passed in %d of %d trials\n", sr.Result.GatePassed, sr.Result.Trials)
	}
	for _, e := range sr.Errors {
		fmt.Fprintf(out.Writer, "  %s\n", e)
	}
}

// findScenarioFiles finds all YAML scenario files under dir, skipping the
// golden directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}
