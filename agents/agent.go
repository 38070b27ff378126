// Package agents implements the per-agent decision loops.
//
// A controller keeps its own mirror of position, energy and cooldowns between
// ticks and talks to other agents only through the shared world.Registry. The
// surrounding runtime calls Tick on the cadence the returned Outcome asks for
// and stops calling once Outcome.Done is set.
package agents

import (
	"math/rand"
	"time"

	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/telemetry"
	"github.com/pthm-cable/preypred/world"
)

// Outcome is what a tick reports back to the runtime.
type Outcome struct {
	// Done means the controller removed itself and must not be ticked again.
	Done bool
	// Delay is how long the runtime should wait before the next tick.
	Delay time.Duration
}

// Controller is one live agent's decision loop.
type Controller interface {
	ID() components.ID
	Kind() components.Kind
	Tick() Outcome
}

// Spawner creates and starts a new agent of the given kind at pos.
type Spawner interface {
	Spawn(kind components.Kind, pos components.Position) error
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(kind components.Kind, pos components.Position) error

// Spawn calls f(kind, pos).
func (f SpawnerFunc) Spawn(kind components.Kind, pos components.Position) error {
	return f(kind, pos)
}

// Recorder receives the agent events that feed telemetry. Implementations must
// be safe for concurrent use.
type Recorder interface {
	RecordDeath(id components.ID, kind components.Kind, cause telemetry.DeathCause)
	RecordKill(predator, prey components.ID)
	RecordFoodEaten(id components.ID, amount int)
	RecordGraze(id components.ID, amount int)
	RecordReproduction(parent components.ID, kind components.Kind)
	RecordSpawnFailure(kind components.Kind)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) RecordDeath(components.ID, components.Kind, telemetry.DeathCause) {}
func (NopRecorder) RecordKill(components.ID, components.ID)                          {}
func (NopRecorder) RecordFoodEaten(components.ID, int)                               {}
func (NopRecorder) RecordGraze(components.ID, int)                                   {}
func (NopRecorder) RecordReproduction(components.ID, components.Kind)                {}
func (NopRecorder) RecordSpawnFailure(components.Kind)                               {}

// Env bundles the shared collaborators every controller needs.
type Env struct {
	Registry *world.Registry
	Spawner  Spawner
	Recorder Recorder
}

func (e Env) recorder() Recorder {
	if e.Recorder == nil {
		return NopRecorder{}
	}
	return e.Recorder
}

// agentState is the private mirror shared by both controller kinds.
type agentState struct {
	id     components.ID
	pos    components.Position
	energy int
	cycle  int

	reproCooldown int

	env Env
	rec Recorder
	rng *rand.Rand
}

func (s *agentState) ID() components.ID { return s.id }

// Position returns the controller's local position.
func (s *agentState) Position() components.Position { return s.pos }

// Energy returns the controller's local energy.
func (s *agentState) Energy() int { return s.energy }

// ReproCooldown returns the ticks left before the agent may reproduce again.
func (s *agentState) ReproCooldown() int { return s.reproCooldown }

// gain adds amount to energy without exceeding limit.
func (s *agentState) gain(amount, limit int) {
	s.energy = min(limit, s.energy+amount)
}

// terminate removes the agent from the registry and reports the death.
func (s *agentState) terminate(kind components.Kind, cause telemetry.DeathCause) Outcome {
	s.env.Registry.Unregister(s.id)
	s.rec.RecordDeath(s.id, kind, cause)
	return Outcome{Done: true}
}

// partition splits perceived records into predators and prey.
func partition(nearby []components.AgentRecord) (predators, prey []components.AgentRecord) {
	for _, rec := range nearby {
		if rec.IsPredator() {
			predators = append(predators, rec)
		} else {
			prey = append(prey, rec)
		}
	}
	return predators, prey
}

func positions(recs []components.AgentRecord) []components.Position {
	out := make([]components.Position, len(recs))
	for i, rec := range recs {
		out[i] = rec.Position
	}
	return out
}

// disperse steps a fraction of the way away from the crowd centroid, with a
// uniform jitter of the given full width added to the offset first.
func (s *agentState) disperse(crowd []components.AgentRecord, factor, jitter float64) {
	center := components.Centroid(positions(crowd))
	dx, dy := s.pos.Sub(center)
	dx += (s.rng.Float64() - 0.5) * jitter
	dy += (s.rng.Float64() - 0.5) * jitter
	s.pos = s.pos.Offset(dx*factor, dy*factor)
}

// offspringPosition returns a point within a square of the given full width
// around the parent.
func (s *agentState) offspringPosition(spread float64) components.Position {
	return s.pos.Offset((s.rng.Float64()-0.5)*spread, (s.rng.Float64()-0.5)*spread)
}
