package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pcs-sim/pcs-sim/sim/trace"
)

// Mode selects the allocation strategy of a run.
type Mode string

const (
	ModeAutonomic   Mode = "autonomic"
	ModeIncremental Mode = "incremental"
	ModeFull        Mode = "full"
)

// ValidModes is the set of recognized strategy modes.
// Shared by Validate() and NewAllocationStrategy() to avoid duplication.
var ValidModes = map[Mode]bool{ModeAutonomic: true, ModeIncremental: true, ModeFull: true}

// Distribution names for arrival gaps and service durations.
const (
	DistExponential = "exponential"
	DistUniform     = "uniform"
)

// ValidDistributions is the set of recognized sampler names.
var ValidDistributions = map[string]bool{DistExponential: true, DistUniform: true}

// Defaults applied by DefaultRunConfig and Configurator.Reset.
const (
	DefaultTA              = 1.2
	DefaultCompleteCalls   = 5000
	DefaultNP              = 1
	DefaultNPRC            = 1000
	DefaultServiceMean     = 120.0
	DefaultSeed            = 42
	DefaultProbes          = 2
	DefaultRecomputeEvery  = 1
	DefaultOutputDirectory = "."
)

// RunConfig is the immutable parameter snapshot of one run.
// Created once per run by the driver; read-only to the engine.
type RunConfig struct {
	TA            float64 `yaml:"ta"`             // mean inter-arrival time
	CompleteCalls int     `yaml:"complete_calls"` // completed-call target
	P             int     `yaml:"p"`              // priority classes (0 = single class)
	NP            int     `yaml:"np"`             // processors
	NPRC          int     `yaml:"nprc"`           // slots per processor
	Mode          Mode    `yaml:"mode"`
	OutputDir     string  `yaml:"output_dir"` // opaque to the engine

	Seed        int64   `yaml:"seed"`
	ServiceMean float64 `yaml:"service_mean"`
	ArrivalDist string  `yaml:"arrival_dist"`
	ServiceDist string  `yaml:"service_dist"`
	VariableTA  bool    `yaml:"variable_ta"`

	AutonomicProbes    int     `yaml:"probes"`          // k in power-of-k sampling
	FullRecomputeEvery int     `yaml:"recompute_every"` // full recomputation period, in arrivals
	ProbeCost          float64 `yaml:"probe_cost"`      // simulated time per processor inspected

	MaxEvents  int64  `yaml:"max_events"` // 0 = unlimited
	TraceLevel string `yaml:"trace"`
}

// DefaultRunConfig returns the configuration a fresh reset produces.
// Mode is deliberately empty: a run must select exactly one.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		TA:                 DefaultTA,
		CompleteCalls:      DefaultCompleteCalls,
		NP:                 DefaultNP,
		NPRC:               DefaultNPRC,
		OutputDir:          DefaultOutputDirectory,
		Seed:               DefaultSeed,
		ServiceMean:        DefaultServiceMean,
		ArrivalDist:        DistExponential,
		ServiceDist:        DistExponential,
		AutonomicProbes:    DefaultProbes,
		FullRecomputeEvery: DefaultRecomputeEvery,
	}
}

// Validate checks ranges and names. All failures are *ConfigurationError.
func (c RunConfig) Validate() error {
	if !(c.TA > 0) || math.IsInf(c.TA, 0) {
		return &ConfigurationError{Field: "ta", Reason: fmt.Sprintf("must be a finite value > 0, got %v", c.TA)}
	}
	if c.CompleteCalls <= 0 {
		return &ConfigurationError{Field: "complete-calls", Reason: fmt.Sprintf("must be > 0, got %d", c.CompleteCalls)}
	}
	if c.P < 0 {
		return &ConfigurationError{Field: "p", Reason: fmt.Sprintf("must be >= 0, got %d", c.P)}
	}
	if c.NP <= 0 {
		return &ConfigurationError{Field: "np", Reason: fmt.Sprintf("must be > 0, got %d", c.NP)}
	}
	if c.NPRC <= 0 {
		return &ConfigurationError{Field: "nprc", Reason: fmt.Sprintf("must be > 0, got %d", c.NPRC)}
	}
	if c.Mode == "" {
		return &ConfigurationError{Field: "mode", Reason: "no allocation strategy selected"}
	}
	if !ValidModes[c.Mode] {
		return &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown strategy %q", c.Mode)}
	}
	if !(c.ServiceMean > 0) || math.IsInf(c.ServiceMean, 0) {
		return &ConfigurationError{Field: "service-mean", Reason: fmt.Sprintf("must be a finite value > 0, got %v", c.ServiceMean)}
	}
	if !ValidDistributions[c.ArrivalDist] {
		return &ConfigurationError{Field: "arrival-dist", Reason: fmt.Sprintf("unknown distribution %q", c.ArrivalDist)}
	}
	if !ValidDistributions[c.ServiceDist] {
		return &ConfigurationError{Field: "service-dist", Reason: fmt.Sprintf("unknown distribution %q", c.ServiceDist)}
	}
	if c.AutonomicProbes < 1 {
		return &ConfigurationError{Field: "probes", Reason: fmt.Sprintf("must be >= 1, got %d", c.AutonomicProbes)}
	}
	if c.FullRecomputeEvery < 1 {
		return &ConfigurationError{Field: "recompute-every", Reason: fmt.Sprintf("must be >= 1, got %d", c.FullRecomputeEvery)}
	}
	if c.ProbeCost < 0 || math.IsNaN(c.ProbeCost) || math.IsInf(c.ProbeCost, 0) {
		return &ConfigurationError{Field: "probe-cost", Reason: fmt.Sprintf("must be a finite value >= 0, got %v", c.ProbeCost)}
	}
	if c.MaxEvents < 0 {
		return &ConfigurationError{Field: "max-events", Reason: fmt.Sprintf("must be >= 0, got %d", c.MaxEvents)}
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return &ConfigurationError{Field: "trace", Reason: fmt.Sprintf("unknown trace level %q", c.TraceLevel)}
	}
	return nil
}

// Classes returns the number of priority classes accounted in Metrics (at least 1).
func (c RunConfig) Classes() int {
	return max(c.P, 1)
}

// ReadRunConfig decodes a YAML run file on top of DefaultRunConfig without
// validating it. Unknown keys are rejected so typos fail loudly.
func ReadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("reading run config: %w", err)
	}
	cfg := DefaultRunConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return RunConfig{}, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadRunConfig reads a YAML run file on top of DefaultRunConfig and validates it.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg, err := ReadRunConfig(path)
	if err != nil {
		return RunConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
