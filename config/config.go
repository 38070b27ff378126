// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Prey       PreyConfig       `yaml:"prey"`
	Predator   PredatorConfig   `yaml:"predator"`
	Food       FoodConfig       `yaml:"food"`
	Population PopulationConfig `yaml:"population"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Server     ServerConfig     `yaml:"server"`
}

// WorldConfig holds the world bounds.
type WorldConfig struct {
	Width             float64 `yaml:"width"`
	Height            float64 `yaml:"height"`
	CollisionDistance float64 `yaml:"collision_distance"` // default radius for collision checks
}

// SpeciesConfig holds the parameters shared by both species.
type SpeciesConfig struct {
	InitialCount   int     `yaml:"initial_count"`
	InitialEnergy  int     `yaml:"initial_energy"`
	MaxEnergy      int     `yaml:"max_energy"`
	ReproThreshold int     `yaml:"repro_threshold"`
	ReproCost      int     `yaml:"repro_cost"`
	Speed          float64 `yaml:"speed"` // world units per tick
	VisionRange    float64 `yaml:"vision_range"`

	ReproCooldown int     `yaml:"repro_cooldown"` // ticks
	ReproChance   float64 `yaml:"repro_chance"`   // per eligible tick
	PartnerCap    int     `yaml:"partner_cap"`    // reproduce only with fewer same-kind neighbors than this

	MetabolismInterval int `yaml:"metabolism_interval"` // lose EnergyLoss every N ticks
	EnergyLoss         int `yaml:"energy_loss"`

	CrowdThreshold  int     `yaml:"crowd_threshold"`  // disperse above this many same-kind neighbors
	DisperseFactor  float64 `yaml:"disperse_factor"`  // fraction of the offset moved per tick
	DisperseJitter  float64 `yaml:"disperse_jitter"`  // full width of the uniform jitter
	OffspringSpread float64 `yaml:"offspring_spread"` // full width of the offspring offset square
	Margin          float64 `yaml:"margin"`           // bounds inset applied before commit

	TickInterval time.Duration `yaml:"tick_interval"`
}

// PreyConfig holds prey-specific parameters.
type PreyConfig struct {
	SpeciesConfig `yaml:",inline"`

	MaxAge           int     `yaml:"max_age"` // ticks
	FleeMultiplier   float64 `yaml:"flee_multiplier"`
	FoodSearchRadius float64 `yaml:"food_search_radius"`
	FoodEatDistance  float64 `yaml:"food_eat_distance"`
	HungerThreshold  int     `yaml:"hunger_threshold"` // speed boost toward food below this energy
	HungerMultiplier float64 `yaml:"hunger_multiplier"`
	GrazeChance      float64 `yaml:"graze_chance"`
	GrazeEnergy      int     `yaml:"graze_energy"`
	WanderMultiplier float64 `yaml:"wander_multiplier"`
}

// PredatorConfig holds predator-specific parameters.
type PredatorConfig struct {
	SpeciesConfig `yaml:",inline"`

	EnergyGain       int           `yaml:"energy_gain"` // per capture
	CatchDistance    float64       `yaml:"catch_distance"`
	EatingCooldown   int           `yaml:"eating_cooldown"` // ticks
	PatrolMultiplier float64       `yaml:"patrol_multiplier"`
	SpawnMargin      float64       `yaml:"spawn_margin"` // newborn positions are clamped to this inset
	DigestInterval   time.Duration `yaml:"digest_interval"`
}

// FoodConfig holds the food spawn policy.
type FoodConfig struct {
	EnergyValue int     `yaml:"energy_value"`
	SpawnRate   int     `yaml:"spawn_rate"` // world ticks between batches
	PerSpawn    int     `yaml:"per_spawn"`
	SpawnMargin float64 `yaml:"spawn_margin"`
	ManualBatch int     `yaml:"manual_batch"`
}

// PopulationConfig holds runtime population limits.
type PopulationConfig struct {
	MaxPrey             int     `yaml:"max_prey"`
	MaxPredators        int     `yaml:"max_predators"`
	PredatorSpawnMargin float64 `yaml:"predator_spawn_margin"` // inset for initial predator placement
}

// ScheduleConfig holds the environment clock and headless stepping parameters.
type ScheduleConfig struct {
	WorldTick       time.Duration `yaml:"world_tick"`
	HeadlessQuantum time.Duration `yaml:"headless_quantum"`
	Workers         int           `yaml:"workers"` // headless worker pool size (0 = GOMAXPROCS)
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int `yaml:"stats_window"` // world ticks per stats window
	HistorySize         int `yaml:"history_size"`
	BookmarkHistorySize int `yaml:"bookmark_history_size"`
	PerfWindow          int `yaml:"perf_window"`
}

// ServerConfig holds presentation feed parameters.
type ServerConfig struct {
	Addr           string `yaml:"addr"` // empty disables the feed
	BroadcastEvery int    `yaml:"broadcast_every"`
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
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	return MustLoad("")
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world: size must be positive, got %vx%v", c.World.Width, c.World.Height))
	}
	errs = append(errs, c.Prey.validate("prey")...)
	errs = append(errs, c.Predator.validate("predator")...)
	if c.Prey.MaxAge <= 0 {
		errs = append(errs, errors.New("prey: max_age must be positive"))
	}
	if c.Prey.GrazeChance < 0 || c.Prey.GrazeChance > 1 {
		errs = append(errs, fmt.Errorf("prey: graze_chance %v outside [0,1]", c.Prey.GrazeChance))
	}
	if c.Predator.DigestInterval <= 0 {
		errs = append(errs, errors.New("predator: digest_interval must be positive"))
	}
	if c.Food.EnergyValue < 0 {
		errs = append(errs, errors.New("food: energy_value must not be negative"))
	}
	if c.Food.SpawnRate <= 0 {
		errs = append(errs, errors.New("food: spawn_rate must be positive"))
	}
	if c.Food.PerSpawn < 0 || c.Food.ManualBatch < 0 {
		errs = append(errs, errors.New("food: batch sizes must not be negative"))
	}
	if c.Schedule.WorldTick <= 0 || c.Schedule.HeadlessQuantum <= 0 {
		errs = append(errs, errors.New("schedule: intervals must be positive"))
	}
	if c.Telemetry.StatsWindow <= 0 {
		errs = append(errs, errors.New("telemetry: stats_window must be positive"))
	}
	return errors.Join(errs...)
}

func (s SpeciesConfig) validate(name string) []error {
	var errs []error
	if s.InitialCount < 0 {
		errs = append(errs, fmt.Errorf("%s: initial_count must not be negative", name))
	}
	if s.InitialEnergy <= 0 {
		errs = append(errs, fmt.Errorf("%s: initial_energy must be positive", name))
	}
	if s.MaxEnergy < s.InitialEnergy {
		errs = append(errs, fmt.Errorf("%s: max_energy %d below initial_energy %d", name, s.MaxEnergy, s.InitialEnergy))
	}
	if s.ReproCost < 0 {
		errs = append(errs, fmt.Errorf("%s: repro_cost must not be negative", name))
	}
	if s.Speed < 0 || s.VisionRange < 0 {
		errs = append(errs, fmt.Errorf("%s: speed and vision_range must not be negative", name))
	}
	if s.ReproChance < 0 || s.ReproChance > 1 {
		errs = append(errs, fmt.Errorf("%s: repro_chance %v outside [0,1]", name, s.ReproChance))
	}
	if s.MetabolismInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s: metabolism_interval must be positive", name))
	}
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s: tick_interval must be positive", name))
	}
	return errs
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
