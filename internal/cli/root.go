package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/arflow/internal/config"
	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/logging"
	"github.com/roach88/arflow/internal/metrics"
	"github.com/roach88/arflow/internal/sampler"
	"github.com/roach88/arflow/internal/sampler/metropolis"
	"github.com/roach88/arflow/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides store.path from the config file

	// Backend overrides the sampler backend (for testing).
	// If nil, the Metropolis backend is built from the config file.
	Backend sampler.Backend

	// IDs overrides series and fit ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs ir.IDGenerator

	// LogWriter overrides the configured log destination (for testing).
	LogWriter io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the arflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "arflow",
		Short: "arflow - Bayesian AR workflow",
		Long: `Simulate, fit, diagnose and forecast autoregressive time series with a
horseshoe prior over lag coefficients and latent missing values.

Each stage reads the previous stage's output from the SQLite store:

  simulate | import  ->  fit  ->  diagnose  ->  forecast | recover`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewFitCommand(opts))
	cmd.AddCommand(NewDiagnoseCommand(opts))
	cmd.AddCommand(NewForecastCommand(opts))
	cmd.AddCommand(NewRecoverCommand(opts))
	cmd.AddCommand(NewStudyCommand(opts))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// env is the per-command runtime: configuration, logger, metrics and,
// when opened, the store. It is built once when a command starts and
// released by close.
type env struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Registry
	store   *store.Store
	ids     ir.IDGenerator
	out     *OutputFormatter

	logCloser io.Closer
}

// newEnv loads configuration and builds the logger and metrics registry.
// Configuration errors are command errors.
func (o *RootOptions) newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadWithEnv(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Store.Path = o.Database
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	e := &env{
		cfg:     cfg,
		metrics: metrics.NewRegistry(),
		ids:     o.IDs,
		out: &OutputFormatter{
			Format:    o.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   o.Verbose,
		},
	}
	if e.ids == nil {
		e.ids = ir.UUIDv7Generator{}
	}

	if o.LogWriter != nil {
		level, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid log level", err)
		}
		e.logger = logging.NewWithWriter(o.LogWriter, level, cfg.Log.Format)
		e.logCloser = nopCloser{}
	} else {
		e.logger, e.logCloser, err = logging.New(logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
		}
	}
	e.logger = e.logger.With().Str("command", cmd.Name()).Logger()
	return e, nil
}

// openStore opens the configured database.
func (e *env) openStore() error {
	st, err := store.Open(e.cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	e.store = st
	e.logger.Debug().Str("path", e.cfg.Store.Path).Msg("database ready")
	return nil
}

// close releases the store and the log file and exports metrics. Errors
// are joined into *errp without replacing a command error.
func (e *env) close(errp *error) {
	var errs []error
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := e.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if err := e.logCloser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log: %w", err))
	}
	if len(errs) > 0 && *errp == nil {
		*errp = WrapExitError(ExitCommandError, "cleanup failed", errors.Join(errs...))
	}
}

// backend returns the sampler backend for this run.
func (o *RootOptions) backend(cfg *config.Config) sampler.Backend {
	if o.Backend != nil {
		return o.Backend
	}
	m := cfg.Sampler.Metropolis
	return metropolis.New(metropolis.Config{
		TargetAcceptance: m.TargetAcceptance,
		BatchSize:        m.BatchSize,
		InitialScale:     m.InitialScale,
		InitAttempts:     m.InitAttempts,
	})
}

// gateOf converts the configured thresholds.
func gateOf(cfg *config.Config) diagnostics.Gate {
	return diagnostics.Gate{
		MaxRhat:        cfg.Gate.MaxRhat,
		MinESS:         cfg.Gate.MinESS,
		MaxDivergences: cfg.Gate.MaxDivergences,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
