package game

import (
	"log/slog"

	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/telemetry"
)

// Frame is the presentation view of one world tick.
type Frame struct {
	Tick      int64                    `json:"tick"`
	Paused    bool                     `json:"paused"`
	Width     float64                  `json:"width"`
	Height    float64                  `json:"height"`
	Agents    []components.AgentRecord `json:"agents"`
	Food      []components.Food        `json:"food"`
	Prey      int                      `json:"prey"`
	Predators int                      `json:"predators"`
	Events    []telemetry.Event        `json:"events,omitempty"` // since the previous broadcast
}

// eventBacklog bounds the events carried between two broadcasts.
const eventBacklog = 512

// worldTick advances the environment clock by one: periodic food, the
// population chart, telemetry windows and the presentation feed. The caller
// owns the perf tick.
func (s *Simulation) worldTick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	tick := s.tick.Add(1)

	s.perf.StartPhase(telemetry.PhaseFood)
	if tick%int64(s.cfg.Food.SpawnRate) == 0 {
		s.spawnFood(s.cfg.Food.PerSpawn)
	}

	s.perf.StartPhase(telemetry.PhaseHistory)
	point := telemetry.PopulationPoint{
		Tick:      tick,
		Prey:      s.registry.CountOfKind(components.KindPrey),
		Predators: s.registry.CountOfKind(components.KindPredator),
		Food:      s.registry.FoodCount(),
	}
	s.history.Add(point)
	if err := s.output.WritePopulation(point); err != nil {
		slog.Error("failed to write population", "error", err)
	}

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.flushTelemetry(tick)

	s.perf.StartPhase(telemetry.PhaseBroadcast)
	every := int64(max(s.cfg.Server.BroadcastEvery, 1))
	if s.frameCallback != nil && tick%every == 0 {
		frame := s.Frame()
		frame.Events = s.events.Drain()
		s.frameCallback(frame)
	}
}

// Frame returns a consistent copy of the world for presentation.
func (s *Simulation) Frame() Frame {
	snap := s.registry.Snapshot()
	return Frame{
		Tick:      s.tick.Load(),
		Paused:    s.Paused(),
		Width:     s.cfg.World.Width,
		Height:    s.cfg.World.Height,
		Agents:    snap.Agents,
		Food:      snap.Food,
		Prey:      snap.Prey,
		Predators: snap.Predators,
	}
}
