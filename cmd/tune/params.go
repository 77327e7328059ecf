// Package main provides CMA-ES tuning of colony parameters for delivery
// throughput.
package main

import (
	"maps"

	"github.com/pthm-cable/forage/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Key     string  // Colony parameter key
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters. The
// bounds are narrower than the colony ranges where the extremes are known
// to stall the colony.
func NewParamVector() *ParamVector {
	specs := []ParamSpec{
		{Name: "receiver_radius", Key: config.KeyReceiverRadius, Min: 5, Max: 100},
		{Name: "self_confident_factor", Key: config.KeySelfConfidentFactor, Min: 1.0, Max: 3.0},
		{Name: "robot_rotation_jitter", Key: config.KeyRobotRotationJitter, Min: 0, Max: 0.5},
		{Name: "robot_speed_jitter", Key: config.KeyRobotSpeedJitter, Min: 0, Max: 0.5},
	}
	for i := range specs {
		if r, ok := config.LookupRange(specs[i].Key); ok {
			specs[i].Default = r.Value
		}
	}
	return &ParamVector{Specs: specs}
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
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Overrides returns clamped values keyed by colony parameter, merged over
// base. Values are snapped to the colony parameter grid so that what is
// evaluated is what a colony would actually run.
func (pv *ParamVector) Overrides(base map[string]float64, values []float64) map[string]float64 {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]float64, len(pv.Specs))
	}
	for i, v := range pv.Clamp(values) {
		key := pv.Specs[i].Key
		if r, ok := config.LookupRange(key); ok {
			v = r.Snap(v)
		}
		out[key] = v
	}
	return out
}

// ApplyToConfig writes the parameter values into every colony of cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i := range cfg.Colonies {
		cfg.Colonies[i].Params = pv.Overrides(cfg.Colonies[i].Params, values)
	}
}
