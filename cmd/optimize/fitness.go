package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/preypred/config"
	"github.com/pthm-cable/preypred/game"
	"github.com/pthm-cable/preypred/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int64
	seeds      []int64
	baseConfig *config.Config

	mu           sync.Mutex
	lastQuality  float64 // quality from most recent Evaluate call
	lastSurvival float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxTicks:   maxTicks,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastSurvival returns the mean survival ticks from the most recent evaluation.
func (fe *FitnessEvaluator) LastSurvival() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSurvival
}

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalTicks int64                   // world ticks before either species died out (or maxTicks)
	windowStats   []telemetry.WindowStats // collected via the stats callback each window
}

// Evaluate computes fitness for raw parameter values (lower = better).
// Seeds run in parallel.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]*runResult, len(fe.seeds))

	var g errgroup.Group
	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runSimulation(x, seed)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// An unrunnable config is as bad as instant extinction.
		slog.Warn("evaluation failed", "error", err)
		return 0
	}

	var totalFitness, totalQuality, totalSurvival float64
	for _, r := range results {
		quality := computeQuality(r.windowStats)
		totalFitness += computeFitness(r.survivalTicks, quality)
		totalQuality += quality
		totalSurvival += float64(r.survivalTicks)
	}

	n := float64(len(fe.seeds))
	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.lastSurvival = totalSurvival / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation executes one headless run until either species dies out or
// maxTicks world ticks have elapsed.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) (*runResult, error) {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{}
	sim, err := game.New(cfg, game.Options{
		Seed:             seed,
		MaxTicks:         fe.maxTicks,
		StopOnExtinction: true,
	})
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	sim.SetStatsCallback(func(stats telemetry.WindowStats) {
		result.windowStats = append(result.windowStats, stats)
	})

	tick, err := sim.RunHeadless(context.Background())
	if err != nil {
		return nil, err
	}
	result.survivalTicks = tick
	return result, nil
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalTicks × (1.0 + 0.2 × quality))
// Survival dominates; quality adds up to 20% bonus to differentiate
// configs with similar survival.
func computeFitness(survivalTicks int64, quality float64) float64 {
	return -(float64(survivalTicks) * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightRatio     = 0.40
	qualityWeightStability = 0.35
	qualityWeightHunting   = 0.25

	qualityWarmupWindows = 2 // skip first N windows (warmup)
	qualityMinPop        = 3 // exclude windows where either species < this
	targetPreyPerPred    = 2.0
	targetKillRate       = 0.1 // kills per predator per window
)

// computeQuality computes ecosystem quality ∈ [0, 1] from window stats.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}

	var ratioSum, huntSum float64
	preyCounts := make([]float64, 0, len(windows))
	predCounts := make([]float64, 0, len(windows))

	for _, w := range windows[qualityWarmupWindows:] {
		if w.PreyCount < qualityMinPop || w.PredCount < qualityMinPop {
			continue
		}
		preyCounts = append(preyCounts, float64(w.PreyCount))
		predCounts = append(predCounts, float64(w.PredCount))

		// Population ratio score
		logErr := math.Log(float64(w.PreyCount) / float64(w.PredCount) / targetPreyPerPred)
		ratioSum += math.Exp(-logErr * logErr)

		// Hunting activity score
		huntSum += 1.0 - math.Exp(-w.KillRate/targetKillRate)
	}

	n := len(preyCounts)
	if n == 0 {
		return 0
	}

	stabilityScore := 0.0
	if n >= 2 {
		cvPrey, cvPred := cv(preyCounts), cv(predCounts)
		stabilityScore = math.Exp(-(cvPrey*cvPrey + cvPred*cvPred))
	}

	quality := qualityWeightRatio*ratioSum/float64(n) +
		qualityWeightStability*stabilityScore +
		qualityWeightHunting*huntSum/float64(n)

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
