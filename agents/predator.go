package agents

import (
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/config"
	"github.com/pthm-cable/preypred/telemetry"
)

// Predator hunts the nearest visible prey, spreads out of packs and breeds
// while patrolling.
type Predator struct {
	agentState
	cfg            config.PredatorConfig
	eatingCooldown int
}

// NewPredator creates a predator at pos with the configured starting energy
// and registers it.
func NewPredator(id components.ID, pos components.Position, cfg config.PredatorConfig, env Env, rng *rand.Rand) *Predator {
	pos = pos.Clamp(0, 0, env.Registry.Width(), env.Registry.Height())
	p := &Predator{
		agentState: agentState{
			id:     id,
			pos:    pos,
			energy: cfg.InitialEnergy,
			env:    env,
			rec:    env.recorder(),
			rng:    rng,
		},
		cfg: cfg,
	}
	env.Registry.Register(id, components.KindPredator, pos, p.energy)
	return p
}

// Kind returns KindPredator.
func (p *Predator) Kind() components.Kind { return components.KindPredator }

// EatingCooldown returns the ticks left before the predator may hunt again.
func (p *Predator) EatingCooldown() int { return p.eatingCooldown }

// Tick runs one decision cycle. After a capture the returned delay is the
// longer digest interval.
func (p *Predator) Tick() Outcome {
	reg := p.env.Registry

	// Cleared by a restart
	if !reg.IsRegistered(p.id) {
		return Outcome{Done: true}
	}

	p.cycle++
	if p.cycle%p.cfg.MetabolismInterval == 0 {
		p.energy -= p.cfg.EnergyLoss
	}
	if p.reproCooldown > 0 {
		p.reproCooldown--
	}
	if p.eatingCooldown > 0 {
		p.eatingCooldown--
	}

	if p.energy <= 0 {
		slog.Debug("predator_starved", "id", p.id, "cycle", p.cycle)
		return p.terminate(components.KindPredator, telemetry.CauseStarved)
	}

	nearby := reg.NearbyAgents(p.id, p.pos, p.cfg.VisionRange)
	predators, prey := partition(nearby)

	ate := false
	switch {
	case len(predators) > p.cfg.CrowdThreshold:
		p.disperse(predators, p.cfg.DisperseFactor, p.cfg.DisperseJitter)
	case len(prey) > 0 && p.eatingCooldown <= 0:
		ate = p.hunt(prey)
	default:
		p.maybeReproduce(len(predators))
		p.pos = p.pos.RandomStep(p.rng, p.cfg.Speed*p.cfg.PatrolMultiplier)
	}

	p.pos = p.pos.ClampInset(reg.Width(), reg.Height(), p.cfg.Margin)
	reg.UpdateState(p.id, p.pos, p.energy)

	if ate {
		return Outcome{Delay: p.cfg.DigestInterval}
	}
	return Outcome{Delay: p.cfg.TickInterval}
}

// hunt chases or captures the nearest prey and reports whether it ate.
func (p *Predator) hunt(prey []components.AgentRecord) bool {
	target := prey[0]
	minDist := p.pos.Distance(target.Position)
	for _, rec := range prey[1:] {
		if d := p.pos.Distance(rec.Position); d < minDist {
			minDist = d
			target = rec
		}
	}

	if minDist > p.cfg.CatchDistance {
		dx, dy := target.Position.Sub(p.pos)
		p.pos = p.pos.MoveToward(dx, dy, p.cfg.Speed)
		return false
	}

	// A restart may have cleared us since the liveness check; the prey then
	// belongs to the next run.
	if !p.env.Registry.IsRegistered(p.id) {
		return false
	}
	// Exactly one predator wins a contested prey
	if !p.env.Registry.Unregister(target.ID) {
		return false
	}
	p.gain(p.cfg.EnergyGain, p.cfg.MaxEnergy)
	p.eatingCooldown = p.cfg.EatingCooldown
	p.rec.RecordKill(p.id, target.ID)
	p.rec.RecordDeath(target.ID, components.KindPrey, telemetry.CauseEaten)
	slog.Debug("prey_eaten", "predator", p.id, "prey", target.ID, "energy", p.energy)
	return true
}

// maybeReproduce breeds when well fed, off cooldown, and with at least one but
// fewer than PartnerCap other predators in sight.
func (p *Predator) maybeReproduce(partners int) {
	if p.energy < p.cfg.ReproThreshold || p.reproCooldown > 0 {
		return
	}
	if p.rng.Float64() >= p.cfg.ReproChance {
		return
	}
	if partners == 0 || partners >= p.cfg.PartnerCap {
		return
	}

	// The cost stays paid even if the spawn is rejected
	p.energy -= p.cfg.ReproCost
	p.reproCooldown = p.cfg.ReproCooldown
	p.rec.RecordReproduction(p.id, components.KindPredator)

	reg := p.env.Registry
	child := p.offspringPosition(p.cfg.OffspringSpread).ClampInset(reg.Width(), reg.Height(), p.cfg.SpawnMargin)
	if err := p.env.Spawner.Spawn(components.KindPredator, child); err != nil {
		p.rec.RecordSpawnFailure(components.KindPredator)
		slog.Debug("spawn_rejected", "parent", p.id, "kind", components.KindPredator, "error", err)
		return
	}
	slog.Debug("predator_offspring", "parent", p.id, "energy", p.energy)
}
