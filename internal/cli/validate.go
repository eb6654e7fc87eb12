package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/compiler"
	"github.com/roach88/arflow/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Models []ModelSummary             `json:"models,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ModelSummary is the listing view of a valid model declaration.
type ModelSummary struct {
	Name string `json:"name"`
	Lags int    `json:"lags"`
	Hash string `json:"hash"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model.cue|dir>",
		Short: "Validate model declarations",
		Long: `Validate CUE model declarations against the model schema.

Reports every declaration that fails the schema (non-positive scales,
lag order below one, duplicate names) without fitting anything.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadModels(path, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr.Pos),
			})
		}
	}
	for _, m := range loadResult.Models {
		formatter.VerboseLog("Validating model: %s", m.Name)
	}
	validationErrors = append(validationErrors, compiler.ValidateAll(loadResult.Models)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	summaries := make([]ModelSummary, 0, len(loadResult.Models))
	for _, m := range loadResult.Models {
		hash, err := ir.ModelHash(m)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to hash model", err)
		}
		summaries = append(summaries, ModelSummary{Name: m.Name, Lags: m.Lags, Hash: hash})
	}
	return outputValidateSuccess(formatter, summaries)
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, models []ModelSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Models: models})
	}

	fmt.Fprintln(formatter.Writer, "✓ All models valid")
	for _, m := range models {
		formatter.Printf("  %s: AR(%d) %s\n", m.Name, m.Lags, m.Hash[:12])
	}
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
