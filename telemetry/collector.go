// Package telemetry provides ecosystem health tracking, bookmarking, and snapshots.
package telemetry

import (
	"sync"
	"time"

	"github.com/pthm-cable/preypred/components"
)

// DeathCause records why an agent left the world.
type DeathCause string

const (
	CauseStarved DeathCause = "starved"
	CauseOldAge  DeathCause = "old_age"
	CauseEaten   DeathCause = "eaten"
	CauseRemoved DeathCause = "removed" // taken out by an operator
)

// Collector accumulates events within windows of world ticks and produces
// WindowStats. Agents report concurrently, so every method locks.
type Collector struct {
	mu sync.Mutex

	windowTicks  int64
	tickInterval time.Duration

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	births        [2]int
	deaths        [2]int
	starved       [2]int
	oldAge        int
	eaten         int
	kills         int
	foodEaten     int
	grazes        int
	reproductions [2]int
	spawnFailures int
	lifespanSum   [2]int64
}

// NewCollector creates a new stats collector.
// windowTicks: how many world ticks each stats window lasts
// tickInterval: wall time per world tick (used for tick-to-time conversion)
func NewCollector(windowTicks int, tickInterval time.Duration) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks:  int64(windowTicks),
		tickInterval: tickInterval,
	}
}

// RecordBirth records a new agent joining the world.
func (c *Collector) RecordBirth(kind components.Kind) {
	c.mu.Lock()
	c.births[kind]++
	c.mu.Unlock()
}

// RecordDeath records an agent leaving the world after living lifespan
// world ticks.
func (c *Collector) RecordDeath(kind components.Kind, cause DeathCause, lifespan int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deaths[kind]++
	c.lifespanSum[kind] += lifespan
	switch cause {
	case CauseStarved:
		c.starved[kind]++
	case CauseOldAge:
		c.oldAge++
	case CauseEaten:
		c.eaten++
	}
}

// RecordKill records a capture.
func (c *Collector) RecordKill() {
	c.mu.Lock()
	c.kills++
	c.mu.Unlock()
}

// RecordFoodEaten records a prey consuming a food item.
func (c *Collector) RecordFoodEaten() {
	c.mu.Lock()
	c.foodEaten++
	c.mu.Unlock()
}

// RecordGraze records a prey gaining energy without a food item.
func (c *Collector) RecordGraze() {
	c.mu.Lock()
	c.grazes++
	c.mu.Unlock()
}

// RecordReproduction records a paid reproduction attempt, whether or not the
// offspring was created.
func (c *Collector) RecordReproduction(kind components.Kind) {
	c.mu.Lock()
	c.reproductions[kind]++
	c.mu.Unlock()
}

// RecordSpawnFailure records an offspring the runtime refused to create.
func (c *Collector) RecordSpawnFailure() {
	c.mu.Lock()
	c.spawnFailures++
	c.mu.Unlock()
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Population is the world state sampled at the end of a window.
type Population struct {
	Prey, Predators, Food      int
	PreyEnergies, PredEnergies []float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, pop Population) WindowStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	prey, pred := components.KindPrey, components.KindPredator

	var killRate float64
	if pop.Predators > 0 {
		killRate = float64(c.kills) / float64(pop.Predators)
	}

	preyEnergy := ComputeEnergyStats(pop.PreyEnergies)
	predEnergy := ComputeEnergyStats(pop.PredEnergies)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      (time.Duration(currentTick) * c.tickInterval).Seconds(),

		PreyCount: pop.Prey,
		PredCount: pop.Predators,
		FoodCount: pop.Food,

		PreyBirths: c.births[prey],
		PredBirths: c.births[pred],
		PreyDeaths: c.deaths[prey],
		PredDeaths: c.deaths[pred],

		PreyStarved: c.starved[prey],
		PreyOldAge:  c.oldAge,
		PreyEaten:   c.eaten,
		PredStarved: c.starved[pred],

		Kills:    c.kills,
		KillRate: killRate,

		FoodEaten:          c.foodEaten,
		Grazes:             c.grazes,
		PreyReproductions:  c.reproductions[prey],
		PredReproductions:  c.reproductions[pred],
		SpawnFailures:      c.spawnFailures,
		PreyMeanLifespan:   meanLifespan(c.lifespanSum[prey], c.deaths[prey]),
		PredMeanLifespan:   meanLifespan(c.lifespanSum[pred], c.deaths[pred]),
		PreyEnergyMean:     preyEnergy.Mean,
		PreyEnergyStd:      preyEnergy.Std,
		PreyEnergyP10:      preyEnergy.P10,
		PreyEnergyP50:      preyEnergy.P50,
		PreyEnergyP90:      preyEnergy.P90,
		PredEnergyMean:     predEnergy.Mean,
		PredEnergyStd:      predEnergy.Std,
		PredEnergyP10:      predEnergy.P10,
		PredEnergyP50:      predEnergy.P50,
		PredEnergyP90:      predEnergy.P90,
	}

	c.resetLocked(currentTick)
	return stats
}

// Reset discards the current window and starts a new one at tick.
func (c *Collector) Reset(tick int64) {
	c.mu.Lock()
	c.resetLocked(tick)
	c.mu.Unlock()
}

func (c *Collector) resetLocked(tick int64) {
	c.windowStartTick = tick
	c.births = [2]int{}
	c.deaths = [2]int{}
	c.starved = [2]int{}
	c.oldAge = 0
	c.eaten = 0
	c.kills = 0
	c.foodEaten = 0
	c.grazes = 0
	c.reproductions = [2]int{}
	c.spawnFailures = 0
	c.lifespanSum = [2]int64{}
}

// WindowTicks returns the number of world ticks per window.
func (c *Collector) WindowTicks() int64 {
	return c.windowTicks
}

func meanLifespan(sum int64, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
