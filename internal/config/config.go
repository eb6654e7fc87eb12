// Package config loads the pipeline configuration.
//
// Configuration is a YAML file. Defaults come from struct tags and are
// applied before the file is decoded, so a value written in the file always
// wins, including an explicit zero. The result is validated once; components
// receive the values they need explicitly and never read configuration on
// their own.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the arflow configuration.
type Config struct {
	Store StoreConfig `yaml:"store"`

	// Workers bounds concurrent chains and concurrent diagnostics.
	Workers int `yaml:"workers" default:"4" validate:"gte=1"`

	Sampler  SamplerConfig  `yaml:"sampler"`
	Gate     GateConfig     `yaml:"gate"`
	Forecast ForecastConfig `yaml:"forecast"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" default:"arflow.db" validate:"required"`
}

// SamplerConfig holds per-fit sampling settings.
type SamplerConfig struct {
	Chains int    `yaml:"chains" default:"4" validate:"gte=1"`
	Warmup int    `yaml:"warmup" default:"1000" validate:"gte=0"`
	Draws  int    `yaml:"draws" default:"1000" validate:"gte=1"`
	Seed   uint64 `yaml:"seed" default:"1"`

	Metropolis MetropolisConfig `yaml:"metropolis"`
}

// MetropolisConfig tunes the reference backend.
type MetropolisConfig struct {
	TargetAcceptance float64 `yaml:"target_acceptance" default:"0.44" validate:"gt=0,lt=1"`
	BatchSize        int     `yaml:"batch_size" default:"50" validate:"gte=1"`
	InitialScale     float64 `yaml:"initial_scale" default:"0.25" validate:"gt=0"`
	InitAttempts     int     `yaml:"init_attempts" default:"100" validate:"gte=1"`
}

// GateConfig holds the thresholds downstream stages require.
type GateConfig struct {
	MaxRhat        float64 `yaml:"max_rhat" default:"1.01" validate:"gte=1"`
	MinESS         float64 `yaml:"min_ess" default:"400" validate:"gte=0"`
	MaxDivergences int     `yaml:"max_divergences" validate:"gte=0"`
}

// ForecastConfig holds forecast settings.
type ForecastConfig struct {
	Quantiles []float64 `yaml:"quantiles" default:"[0.25,0.5,0.75]" validate:"min=1,dive,gt=0,lt=1"`

	// Horizon is the number of steps projected beyond the series.
	Horizon int    `yaml:"horizon" default:"0" validate:"gte=0"`
	Seed    uint64 `yaml:"seed" default:"1"`
}

// RecoveryConfig holds parameter-recovery settings.
type RecoveryConfig struct {
	Width float64 `yaml:"width" default:"0.5" validate:"gt=0,lt=1"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error disabled"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output string `yaml:"output" default:"stderr" validate:"required"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics of every command in the
	// Prometheus text format.
	Textfile string `yaml:"textfile"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads, defaults and validates the configuration at path.
// An empty path yields Default.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads the configuration and applies environment overrides:
// ARFLOW_DB, ARFLOW_WORKERS and ARFLOW_LOG_LEVEL.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("ARFLOW_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("ARFLOW_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ARFLOW_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ARFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration and reports every violated rule.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// fieldMessage renders a validation failure with its YAML path.
func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
