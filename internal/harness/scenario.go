package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/arflow/internal/compiler"
	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
)

// Scenario is a parameter-recovery study loaded from YAML.
//
// Each trial simulates a fresh series from Truth (seed Seed+trial), fits it,
// and checks whether every known value lies in its central posterior
// interval of the given Width.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Model ModelSettings `yaml:"model"`
	Truth ir.TrueParams `yaml:"truth"`

	Length          int     `yaml:"length"`
	MissingFraction float64 `yaml:"missing_fraction"`
	Trials          int     `yaml:"trials"`
	Seed            uint64  `yaml:"seed"`
	Width           float64 `yaml:"width"`

	Sampler SamplerSettings `yaml:"sampler"`

	// Gate is applied to every trial's diagnostics. Nil means the default gate.
	Gate *diagnostics.Gate `yaml:"gate,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// ModelSettings declares the AR(P) model fitted in every trial. Zero prior
// scales take the values of ir.DefaultModelDecl.
type ModelSettings struct {
	Name              string  `yaml:"name,omitempty"`
	Lags              int     `yaml:"lags"`
	InterceptLocation float64 `yaml:"intercept_location,omitempty"`
	InterceptScale    float64 `yaml:"intercept_scale,omitempty"`
	GlobalScale       float64 `yaml:"global_scale,omitempty"`
	SigmaScale        float64 `yaml:"sigma_scale,omitempty"`
}

// Decl converts the settings into a model declaration.
func (m ModelSettings) Decl() ir.ModelDecl {
	decl := ir.DefaultModelDecl(m.Lags)
	if m.Name != "" {
		decl.Name = m.Name
	}
	decl.Intercept.Location = m.InterceptLocation
	if m.InterceptScale != 0 {
		decl.Intercept.Scale = m.InterceptScale
	}
	if m.GlobalScale != 0 {
		decl.GlobalScale = m.GlobalScale
	}
	if m.SigmaScale != 0 {
		decl.SigmaScale = m.SigmaScale
	}
	return decl
}

// SamplerSettings are the per-trial sampler settings.
type SamplerSettings struct {
	Chains  int `yaml:"chains"`
	Warmup  int `yaml:"warmup"`
	Draws   int `yaml:"draws"`
	Workers int `yaml:"workers"`
}

// Assertion is a check evaluated over the aggregated study result.
type Assertion struct {
	Type string `yaml:"type"`

	// Param names the parameter for coverage and median assertions.
	Param string `yaml:"param,omitempty"`

	// Min is the lower bound for min_coverage, latent_coverage and
	// gate_pass_rate.
	Min float64 `yaml:"min,omitempty"`

	// Max is the upper bound on the absolute mean posterior median for
	// max_abs_median.
	Max float64 `yaml:"max,omitempty"`
}

// Assertion types.
const (
	// AssertMinCoverage requires the fraction of trials whose interval
	// covered Param's true value to be at least Min.
	AssertMinCoverage = "min_coverage"

	// AssertMaxAbsMedian requires |mean posterior median of Param| <= Max.
	// Used to check that coefficients with true value zero shrink.
	AssertMaxAbsMedian = "max_abs_median"

	// AssertLatentCoverage requires the fraction of covered latent
	// values over all trials to be at least Min.
	AssertLatentCoverage = "latent_coverage"

	// AssertGatePassRate requires the fraction of trials passing the
	// diagnostics gate to be at least Min.
	AssertGatePassRate = "gate_pass_rate"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if errs := compiler.Validate(s.Model.Decl()); len(errs) > 0 {
		return fmt.Errorf("model: %w", errs[0])
	}
	if len(s.Truth.Beta) != s.Model.Lags {
		return fmt.Errorf("truth.beta has %d coefficients, model has %d lags", len(s.Truth.Beta), s.Model.Lags)
	}
	if !(s.Truth.Sigma > 0) {
		return fmt.Errorf("truth.sigma must be strictly positive, got %v", s.Truth.Sigma)
	}

	switch {
	case s.Length < s.Model.Lags+1:
		return fmt.Errorf("length %d too short for %d lags", s.Length, s.Model.Lags)
	case !(s.MissingFraction >= 0 && s.MissingFraction < 1):
		return fmt.Errorf("missing_fraction must be in [0, 1), got %v", s.MissingFraction)
	case s.Trials < 1:
		return fmt.Errorf("trials must be at least 1, got %d", s.Trials)
	case !(s.Width > 0 && s.Width < 1):
		return fmt.Errorf("width must be in (0, 1), got %v", s.Width)
	}

	// Diagnostics need two chains of at least four draws.
	switch {
	case s.Sampler.Chains < 2:
		return fmt.Errorf("sampler.chains must be at least 2, got %d", s.Sampler.Chains)
	case s.Sampler.Draws < 4:
		return fmt.Errorf("sampler.draws must be at least 4, got %d", s.Sampler.Draws)
	case s.Sampler.Warmup < 0:
		return fmt.Errorf("sampler.warmup must not be negative, got %d", s.Sampler.Warmup)
	}
	if s.Sampler.Workers == 0 {
		s.Sampler.Workers = s.Sampler.Chains
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, s.Truth); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, truth ir.TrueParams) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertMinCoverage, AssertMaxAbsMedian:
		if a.Param == "" {
			return fmt.Errorf("assertions[%d]: param is required for %s", index, a.Type)
		}
		if _, ok := truth.Map()[a.Param]; !ok {
			return fmt.Errorf("assertions[%d]: unknown param %q", index, a.Param)
		}
		if a.Type == AssertMaxAbsMedian && !(a.Max > 0) {
			return fmt.Errorf("assertions[%d]: max must be positive", index)
		}
	case AssertLatentCoverage, AssertGatePassRate:
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}

	if a.Type != AssertMaxAbsMedian && !(a.Min >= 0 && a.Min <= 1) {
		return fmt.Errorf("assertions[%d]: min must be in [0, 1], got %v", index, a.Min)
	}
	return nil
}
