// Package logging builds the zerolog logger shared by arflow components.
//
// Components take a zerolog.Logger value; tests pass zerolog.Nop().
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, format and destination.
type Config struct {
	Level  string // debug, info, warn, error, disabled
	Format string // json or console
	Output string // stdout, stderr, or file path
}

// New builds a logger for cfg. The returned closer releases a log file and
// is a no-op for the standard streams.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer
	var closer io.Closer = nopCloser{}
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("could not open log file: %w", err)
		}
		out, closer = file, file
	}

	return NewWithWriter(out, level, cfg.Format), closer, nil
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
