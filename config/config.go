// Package config provides configuration loading and access for the tracer.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all tracer configuration parameters.
type Config struct {
	Integration IntegrationConfig `yaml:"integration"`
	Locator     LocatorConfig     `yaml:"locator"`
	Injection   InjectionConfig   `yaml:"injection"`
	Output      OutputConfig      `yaml:"output"`
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Logging     LoggingConfig     `yaml:"logging"`
	Scenario    ScenarioConfig    `yaml:"scenario"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// IntegrationConfig holds ODE integration parameters.
// Step sizes are in simulation time units.
type IntegrationConfig struct {
	Integrator    string  `yaml:"integrator"`     // rk2, rk4 or rk45
	Direction     string  `yaml:"direction"`      // only "forward" is supported
	InitialStep   float64 `yaml:"initial_step"`   // Requested step before any adaptation
	MinStep       float64 `yaml:"min_step"`       // Lower bound for adaptive steps
	MaxStep       float64 `yaml:"max_step"`       // Upper bound for adaptive steps
	MaxError      float64 `yaml:"max_error"`      // Positional error bound per step (rk45 only)
	MaxSubsteps   int     `yaml:"max_substeps"`   // Attempts per particle per window before it is dropped
	TerminalSpeed float64 `yaml:"terminal_speed"` // Particles at or below this speed are removed (0 disables)
	NudgeFactor   float64 `yaml:"nudge_factor"`   // Fraction of the failed step used to push a particle along its last good velocity
	TimeEpsilon   float64 `yaml:"time_epsilon"`   // Relative to the window length
}

// LocatorConfig holds point location parameters.
type LocatorConfig struct {
	Strategy        string  `yaml:"strategy"`         // tree or exhaustive
	ToleranceFactor float64 `yaml:"tolerance_factor"` // Tolerance = factor * block bounding diagonal
	StaticMesh      bool    `yaml:"static_mesh"`      // Geometry is fixed for the whole run
	Vectors         string  `yaml:"vectors"`          // Name of the point vector array used as velocity
}

// InjectionConfig holds seeding parameters.
type InjectionConfig struct {
	ReinjectEvery int `yaml:"reinject_every"` // Windows between reinjections (0 = initial only)
}

// OutputConfig holds output parameters.
type OutputConfig struct {
	Vorticity bool   `yaml:"vorticity"` // Compute vorticity, rotation and angular velocity
	Dir       string `yaml:"dir"`       // Directory for CSV output (empty = disabled)
	Particles bool   `yaml:"particles"` // Write per-window particle CSV
}

// ExchangeConfig holds distributed exchange parameters.
type ExchangeConfig struct {
	MaxPasses int    `yaml:"max_passes"` // Integration passes per window (exchanges = passes-1)
	Hub       string `yaml:"hub"`        // Websocket hub URL for multi-process runs
	Listen    string `yaml:"listen"`     // Address a hub listens on
}

// LoggingConfig holds slog handler parameters.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// ScenarioConfig describes the synthetic analytic flow used by the CLI.
type ScenarioConfig struct {
	Field      string     `yaml:"field"` // uniform, vortex, shear, pulse
	Mesh       string     `yaml:"mesh"`  // structured or unstructured
	Min        [3]float64 `yaml:"min"`
	Max        [3]float64 `yaml:"max"`
	Resolution [3]int     `yaml:"resolution"` // Cells per axis
	Velocity   [3]float64 `yaml:"velocity"`
	Omega      float64    `yaml:"omega"`  // Vortex angular velocity
	Period     float64    `yaml:"period"` // Pulse period
	Windows    int        `yaml:"windows"`
	Dt         float64    `yaml:"dt"` // Time between snapshots
	Seeds      SeedConfig `yaml:"seeds"`
}

// SeedConfig describes a straight seed line.
type SeedConfig struct {
	From  [3]float64 `yaml:"from"`
	To    [3]float64 `yaml:"to"`
	Count int        `yaml:"count"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Adaptive bool // Integrator adapts its step
	Passes   int  // Effective pass count (at least 2)
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every invalid parameter at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Integration.Integrator {
	case "rk2", "rk4", "rk45":
	default:
		result = multierror.Append(result, fmt.Errorf("integration.integrator: unknown integrator %q", c.Integration.Integrator))
	}
	if c.Integration.InitialStep <= 0 {
		result = multierror.Append(result, fmt.Errorf("integration.initial_step must be positive, got %g", c.Integration.InitialStep))
	}
	if c.Integration.MinStep < 0 || c.Integration.MaxStep < c.Integration.MinStep {
		result = multierror.Append(result, fmt.Errorf("integration: need 0 <= min_step <= max_step, got %g and %g",
			c.Integration.MinStep, c.Integration.MaxStep))
	}
	if c.Integration.MaxSubsteps < 1 {
		result = multierror.Append(result, fmt.Errorf("integration.max_substeps must be at least 1, got %d", c.Integration.MaxSubsteps))
	}
	if c.Integration.NudgeFactor < 0 {
		result = multierror.Append(result, fmt.Errorf("integration.nudge_factor must not be negative, got %g", c.Integration.NudgeFactor))
	}
	switch c.Locator.Strategy {
	case "tree", "exhaustive":
	default:
		result = multierror.Append(result, fmt.Errorf("locator.strategy: unknown strategy %q", c.Locator.Strategy))
	}
	if c.Locator.ToleranceFactor <= 0 {
		result = multierror.Append(result, fmt.Errorf("locator.tolerance_factor must be positive, got %g", c.Locator.ToleranceFactor))
	}
	if c.Locator.Vectors == "" {
		result = multierror.Append(result, fmt.Errorf("locator.vectors must name a vector array"))
	}
	if c.Injection.ReinjectEvery < 0 {
		result = multierror.Append(result, fmt.Errorf("injection.reinject_every must not be negative, got %d", c.Injection.ReinjectEvery))
	}

	return result.ErrorOrNil()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Adaptive = c.Integration.Integrator == "rk45" && c.Integration.MaxError > 0
	c.Derived.Passes = c.Exchange.MaxPasses
	if c.Derived.Passes < 2 {
		c.Derived.Passes = 2
	}
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
