// Package main provides CMA-ES tuning of the integration step controls
// against analytic flows.
package main

import (
	"math"

	"github.com/pthm-cable/tracer/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Log     bool    // Searched as log10 of the config value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "initial_step", Path: "integration.initial_step", Min: 1e-3, Max: 0.2, Default: 0.05},
			{Name: "max_step", Path: "integration.max_step", Min: 0.01, Max: 1, Default: 0.5},
			{Name: "max_error", Path: "integration.max_error", Min: -9, Max: -3, Default: -6, Log: true},
			{Name: "nudge_factor", Path: "integration.nudge_factor", Min: 0, Max: 2, Default: 1},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Min(math.Max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Values converts raw search values to config values.
func (pv *ParamVector) Values(raw []float64) []float64 {
	out := pv.Clamp(raw)
	for i, spec := range pv.Specs {
		if spec.Log {
			out[i] = math.Pow(10, out[i])
		}
	}
	return out
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, raw []float64) {
	v := pv.Values(raw)
	cfg.Integration.InitialStep = v[0]
	cfg.Integration.MaxStep = v[1]
	cfg.Integration.MaxError = v[2]
	cfg.Integration.NudgeFactor = v[3]
	if cfg.Integration.MinStep > cfg.Integration.MaxStep {
		cfg.Integration.MinStep = cfg.Integration.MaxStep
	}
}

// ExtractFromConfig extracts current parameter values from a Config struct
// in search coordinates.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Integration.InitialStep,
		cfg.Integration.MaxStep,
		math.Log10(cfg.Integration.MaxError),
		cfg.Integration.NudgeFactor,
	}
}
