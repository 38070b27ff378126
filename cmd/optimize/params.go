package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/pthm-cable/preypred/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Integer bool    // rounded before it is applied

	get func(*config.Config) float64
	set func(*config.Config, float64)
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

func intParam(name, path string, lo, hi float64, field func(*config.Config) *int) ParamSpec {
	return ParamSpec{
		Name: name, Path: path, Min: lo, Max: hi, Integer: true,
		get: func(c *config.Config) float64 { return float64(*field(c)) },
		set: func(c *config.Config, v float64) { *field(c) = int(math.Round(v)) },
	}
}

func floatParam(name, path string, lo, hi float64, field func(*config.Config) *float64) ParamSpec {
	return ParamSpec{
		Name: name, Path: path, Min: lo, Max: hi,
		get: func(c *config.Config) float64 { return *field(c) },
		set: func(c *config.Config, v float64) { *field(c) = v },
	}
}

// NewParamVector creates the standard set of optimizable parameters: the
// breeding, feeding and food-supply knobs that decide whether both species
// coexist.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Prey
			intParam("prey_repro_threshold", "prey.repro_threshold", 50, 115,
				func(c *config.Config) *int { return &c.Prey.ReproThreshold }),
			intParam("prey_repro_cost", "prey.repro_cost", 10, 60,
				func(c *config.Config) *int { return &c.Prey.ReproCost }),
			floatParam("prey_repro_chance", "prey.repro_chance", 0.05, 0.5,
				func(c *config.Config) *float64 { return &c.Prey.ReproChance }),
			intParam("prey_repro_cooldown", "prey.repro_cooldown", 100, 600,
				func(c *config.Config) *int { return &c.Prey.ReproCooldown }),
			floatParam("prey_graze_chance", "prey.graze_chance", 0, 0.6,
				func(c *config.Config) *float64 { return &c.Prey.GrazeChance }),
			intParam("prey_graze_energy", "prey.graze_energy", 0, 30,
				func(c *config.Config) *int { return &c.Prey.GrazeEnergy }),
			intParam("prey_max_age", "prey.max_age", 500, 3000,
				func(c *config.Config) *int { return &c.Prey.MaxAge }),
			// Predator
			intParam("pred_repro_threshold", "predator.repro_threshold", 100, 290,
				func(c *config.Config) *int { return &c.Predator.ReproThreshold }),
			intParam("pred_repro_cost", "predator.repro_cost", 20, 120,
				func(c *config.Config) *int { return &c.Predator.ReproCost }),
			intParam("pred_energy_gain", "predator.energy_gain", 30, 150,
				func(c *config.Config) *int { return &c.Predator.EnergyGain }),
			floatParam("pred_repro_chance", "predator.repro_chance", 0.02, 0.3,
				func(c *config.Config) *float64 { return &c.Predator.ReproChance }),
			intParam("pred_repro_cooldown", "predator.repro_cooldown", 200, 1500,
				func(c *config.Config) *int { return &c.Predator.ReproCooldown }),
			intParam("pred_eating_cooldown", "predator.eating_cooldown", 20, 300,
				func(c *config.Config) *int { return &c.Predator.EatingCooldown }),
			floatParam("pred_catch_distance", "predator.catch_distance", 10, 40,
				func(c *config.Config) *float64 { return &c.Predator.CatchDistance }),
			// Food
			intParam("food_spawn_rate", "food.spawn_rate", 2, 30,
				func(c *config.Config) *int { return &c.Food.SpawnRate }),
			intParam("food_per_spawn", "food.per_spawn", 0, 10,
				func(c *config.Config) *int { return &c.Food.PerSpawn }),
			intParam("food_energy", "food.energy_value", 10, 80,
				func(c *config.Config) *int { return &c.Food.EnergyValue }),
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.get(cfg)
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

// ApplyToConfig applies clamped parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}

// Format renders values as name=value pairs for the evaluation log.
func (pv *ParamVector) Format(values []float64) string {
	parts := make([]string, len(pv.Specs))
	for i, spec := range pv.Specs {
		if spec.Integer {
			parts[i] = fmt.Sprintf("%s=%d", spec.Name, int(math.Round(values[i])))
		} else {
			parts[i] = fmt.Sprintf("%s=%.4f", spec.Name, values[i])
		}
	}
	return strings.Join(parts, ";")
}
