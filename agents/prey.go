package agents

import (
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/config"
	"github.com/pthm-cable/preypred/telemetry"
)

// Prey flees predators, spreads out of crowds, forages and breeds.
type Prey struct {
	agentState
	cfg config.PreyConfig
	age int
}

// NewPrey creates a prey at pos with the configured starting energy and
// registers it.
func NewPrey(id components.ID, pos components.Position, cfg config.PreyConfig, env Env, rng *rand.Rand) *Prey {
	pos = pos.Clamp(0, 0, env.Registry.Width(), env.Registry.Height())
	p := &Prey{
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
	env.Registry.Register(id, components.KindPrey, pos, p.energy)
	return p
}

// Kind returns KindPrey.
func (p *Prey) Kind() components.Kind { return components.KindPrey }

// Age returns the number of ticks the prey has lived.
func (p *Prey) Age() int { return p.age }

// Tick runs one decision cycle.
func (p *Prey) Tick() Outcome {
	reg := p.env.Registry

	// Eaten or cleared since the last tick
	if !reg.IsRegistered(p.id) {
		return Outcome{Done: true}
	}

	p.age++
	if p.age%p.cfg.MetabolismInterval == 0 {
		p.energy -= p.cfg.EnergyLoss
	}
	if p.reproCooldown > 0 {
		p.reproCooldown--
	}

	if p.energy <= 0 {
		slog.Debug("prey_starved", "id", p.id, "age", p.age)
		return p.terminate(components.KindPrey, telemetry.CauseStarved)
	}
	if p.age > p.cfg.MaxAge {
		slog.Debug("prey_old_age", "id", p.id, "age", p.age)
		return p.terminate(components.KindPrey, telemetry.CauseOldAge)
	}

	nearby := reg.NearbyAgents(p.id, p.pos, p.cfg.VisionRange)
	predators, prey := partition(nearby)

	switch {
	case len(predators) > 0:
		p.flee(predators)
	case len(prey) > p.cfg.CrowdThreshold:
		p.disperse(prey, p.cfg.DisperseFactor, p.cfg.DisperseJitter)
	default:
		p.forage()
		p.maybeReproduce(len(prey))
	}

	p.pos = p.pos.ClampInset(reg.Width(), reg.Height(), p.cfg.Margin)
	reg.UpdateState(p.id, p.pos, p.energy)

	return Outcome{Delay: p.cfg.TickInterval}
}

// flee moves directly away from the mean predator position.
func (p *Prey) flee(predators []components.AgentRecord) {
	threat := components.Centroid(positions(predators))
	dx, dy := p.pos.Sub(threat)
	p.pos = p.pos.MoveToward(dx, dy, p.cfg.Speed*p.cfg.FleeMultiplier)
}

func (p *Prey) forage() {
	reg := p.env.Registry

	food, ok := reg.FindNearestFood(p.pos, p.cfg.FoodSearchRadius)
	if !ok {
		if p.rng.Float64() < p.cfg.GrazeChance {
			p.gain(p.cfg.GrazeEnergy, p.cfg.MaxEnergy)
			p.rec.RecordGraze(p.id, p.cfg.GrazeEnergy)
		}
		p.pos = p.pos.RandomStep(p.rng, p.cfg.Speed*p.cfg.WanderMultiplier)
		return
	}

	if p.pos.Distance(food.Position) <= p.cfg.FoodEatDistance {
		// Another forager may have beaten us to it
		if reg.ConsumeFood(food) {
			p.gain(food.EnergyValue, p.cfg.MaxEnergy)
			p.rec.RecordFoodEaten(p.id, food.EnergyValue)
			slog.Debug("prey_ate", "id", p.id, "energy", p.energy)
		}
		return
	}

	speed := p.cfg.Speed
	if p.energy < p.cfg.HungerThreshold {
		speed *= p.cfg.HungerMultiplier
	}
	dx, dy := food.Position.Sub(p.pos)
	p.pos = p.pos.MoveToward(dx, dy, speed)
}

// maybeReproduce breeds when well fed, off cooldown, and with at least one but
// fewer than PartnerCap prey in sight.
func (p *Prey) maybeReproduce(partners int) {
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
	p.rec.RecordReproduction(p.id, components.KindPrey)

	child := p.offspringPosition(p.cfg.OffspringSpread)
	if err := p.env.Spawner.Spawn(components.KindPrey, child); err != nil {
		p.rec.RecordSpawnFailure(components.KindPrey)
		slog.Debug("spawn_rejected", "parent", p.id, "kind", components.KindPrey, "error", err)
	}
}
