package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of world ticks.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population counts at window end
	PreyCount int `csv:"prey"`
	PredCount int `csv:"pred"`
	FoodCount int `csv:"food"`

	// Events during window
	PreyBirths int `csv:"prey_births"`
	PredBirths int `csv:"pred_births"`
	PreyDeaths int `csv:"prey_deaths"`
	PredDeaths int `csv:"pred_deaths"`

	// Death causes
	PreyStarved int `csv:"prey_starved"`
	PreyOldAge  int `csv:"prey_old_age"`
	PreyEaten   int `csv:"prey_eaten"`
	PredStarved int `csv:"pred_starved"`

	// Hunting
	Kills    int     `csv:"kills"`
	KillRate float64 `csv:"kill_rate"` // kills per living predator

	// Feeding and breeding
	FoodEaten         int `csv:"food_eaten"`
	Grazes            int `csv:"grazes"`
	PreyReproductions int `csv:"prey_repro"`
	PredReproductions int `csv:"pred_repro"`
	SpawnFailures     int `csv:"spawn_failures"`

	// Mean lifespan in world ticks of agents that died this window
	PreyMeanLifespan float64 `csv:"prey_lifespan"`
	PredMeanLifespan float64 `csv:"pred_lifespan"`

	// Energy distribution (sampled at window end)
	PreyEnergyMean float64 `csv:"prey_energy_mean"`
	PreyEnergyStd  float64 `csv:"prey_energy_std"`
	PreyEnergyP10  float64 `csv:"prey_energy_p10"`
	PreyEnergyP50  float64 `csv:"prey_energy_p50"`
	PreyEnergyP90  float64 `csv:"prey_energy_p90"`

	PredEnergyMean float64 `csv:"pred_energy_mean"`
	PredEnergyStd  float64 `csv:"pred_energy_std"`
	PredEnergyP10  float64 `csv:"pred_energy_p10"`
	PredEnergyP50  float64 `csv:"pred_energy_p50"`
	PredEnergyP90  float64 `csv:"pred_energy_p90"`
}

// EnergyStats summarizes one species' energy distribution.
type EnergyStats struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Percentile returns the empirical p-th quantile of a sorted slice.
// p is clamped to [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeEnergyStats calculates mean, standard deviation and percentiles.
func ComputeEnergyStats(values []float64) EnergyStats {
	n := len(values)
	if n == 0 {
		return EnergyStats{}
	}

	var es EnergyStats
	if n == 1 {
		es.Mean = values[0]
	} else {
		es.Mean, es.Std = stat.MeanStdDev(values, nil)
	}

	// Sort a copy for percentiles
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	es.P10 = Percentile(sorted, 0.10)
	es.P50 = Percentile(sorted, 0.50)
	es.P90 = Percentile(sorted, 0.90)
	return es
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("prey", s.PreyCount),
		slog.Int("pred", s.PredCount),
		slog.Int("food", s.FoodCount),
		slog.Int("prey_births", s.PreyBirths),
		slog.Int("pred_births", s.PredBirths),
		slog.Int("prey_deaths", s.PreyDeaths),
		slog.Int("pred_deaths", s.PredDeaths),
		slog.Int("kills", s.Kills),
		slog.Float64("kill_rate", s.KillRate),
		slog.Int("food_eaten", s.FoodEaten),
		slog.Int("spawn_failures", s.SpawnFailures),
		slog.Float64("prey_energy_mean", s.PreyEnergyMean),
		slog.Float64("pred_energy_mean", s.PredEnergyMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"prey", s.PreyCount,
		"pred", s.PredCount,
		"food", s.FoodCount,
		"prey_births", s.PreyBirths,
		"pred_births", s.PredBirths,
		"prey_deaths", s.PreyDeaths,
		"pred_deaths", s.PredDeaths,
		"prey_starved", s.PreyStarved,
		"prey_old_age", s.PreyOldAge,
		"prey_eaten", s.PreyEaten,
		"pred_starved", s.PredStarved,
		"kills", s.Kills,
		"kill_rate", s.KillRate,
		"food_eaten", s.FoodEaten,
		"grazes", s.Grazes,
		"prey_repro", s.PreyReproductions,
		"pred_repro", s.PredReproductions,
		"spawn_failures", s.SpawnFailures,
		"prey_lifespan", s.PreyMeanLifespan,
		"pred_lifespan", s.PredMeanLifespan,
		"prey_energy_mean", s.PreyEnergyMean,
		"prey_energy_p50", s.PreyEnergyP50,
		"pred_energy_mean", s.PredEnergyMean,
		"pred_energy_p50", s.PredEnergyP50,
	)
}
