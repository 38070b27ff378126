// Package game is the agent-execution substrate: it creates controllers,
// drives their ticks (in real time or on a virtual clock), runs the
// environment clock that spawns food, and feeds telemetry and the
// presentation feed.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/preypred/agents"
	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/config"
	"github.com/pthm-cable/preypred/telemetry"
	"github.com/pthm-cable/preypred/world"
)

// Spawn rejections. Controllers swallow these; quick actions return them.
var (
	ErrStopped       = errors.New("simulation is not running")
	ErrPopulationCap = errors.New("population cap reached")
	ErrStaleSpawner  = errors.New("spawner belongs to a previous run")
)

// Options configures a Simulation beyond the YAML config.
type Options struct {
	Seed             int64
	LogStats         bool
	SnapshotDir      string
	OutputDir        string
	MaxTicks         int64 // stop after this many world ticks (0 = unlimited)
	StopOnExtinction bool  // headless: stop once either species dies out
}

// Simulation owns the registry and every live controller.
type Simulation struct {
	cfg      *config.Config
	opts     Options
	registry *world.Registry

	// mu guards rng, launch, paused state and epoch changes.
	mu       sync.Mutex
	rng      *rand.Rand
	launch   func(agents.Controller)
	resumeCh chan struct{} // closed while running, open while paused
	paused   bool
	epoch    atomic.Uint64
	tick     atomic.Int64

	// tickMu serializes world ticks against restarts.
	tickMu sync.Mutex

	// Telemetry
	collector     *telemetry.Collector
	lifetime      *telemetry.LifetimeTracker
	history       *telemetry.History
	bookmarks     *telemetry.BookmarkDetector
	perf          *telemetry.PerfCollector
	output        *telemetry.OutputManager
	events        *telemetry.EventLog
	statsCallback func(telemetry.WindowStats)
	frameCallback func(Frame)
}

// New creates a simulation. Nothing runs until Run or a headless runner
// starts it.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("creating output manager: %w", err)
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, fmt.Errorf("writing config: %w", err)
	}

	resume := make(chan struct{})
	close(resume)

	s := &Simulation{
		cfg:       cfg,
		opts:      opts,
		registry:  world.New(cfg.World.Width, cfg.World.Height, cfg.Food.EnergyValue),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		resumeCh:  resume,
		collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Schedule.WorldTick),
		lifetime:  telemetry.NewLifetimeTracker(),
		history:   telemetry.NewHistory(cfg.Telemetry.HistorySize),
		bookmarks: telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		output:    output,
		events:    telemetry.NewEventLog(eventBacklog),
	}
	return s, nil
}

// SetStatsCallback registers a function called with every flushed window.
func (s *Simulation) SetStatsCallback(fn func(telemetry.WindowStats)) {
	s.tickMu.Lock()
	s.statsCallback = fn
	s.tickMu.Unlock()
}

// SetFrameCallback registers a function called with a world frame every
// server.broadcast_every world ticks.
func (s *Simulation) SetFrameCallback(fn func(Frame)) {
	s.tickMu.Lock()
	s.frameCallback = fn
	s.tickMu.Unlock()
}

// Registry returns the shared world registry.
func (s *Simulation) Registry() *world.Registry { return s.registry }

// Config returns the simulation's configuration.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Tick returns the number of world ticks so far.
func (s *Simulation) Tick() int64 { return s.tick.Load() }

// History returns the population chart, oldest first.
func (s *Simulation) History() []telemetry.PopulationPoint { return s.history.Points() }

// Close flushes and closes output files.
func (s *Simulation) Close() error {
	return s.output.Close()
}

// epochSpawner creates offspring on behalf of controllers from one run.
type epochSpawner struct {
	sim   *Simulation
	epoch uint64
}

func (sp epochSpawner) Spawn(kind components.Kind, pos components.Position) error {
	return sp.sim.spawn(sp.epoch, kind, pos)
}

// spawn creates, registers and launches a controller. Requests from a
// previous epoch, or past the population cap, are rejected.
func (s *Simulation) spawn(epoch uint64, kind components.Kind, pos components.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.launch == nil {
		return ErrStopped
	}
	if epoch != s.epoch.Load() {
		return ErrStaleSpawner
	}
	limit := s.cfg.Population.MaxPrey
	if kind == components.KindPredator {
		limit = s.cfg.Population.MaxPredators
	}
	if limit > 0 && s.registry.CountOfKind(kind) >= limit {
		return ErrPopulationCap
	}

	c := s.newController(epoch, kind, pos, s.rng.Int63())
	s.lifetime.Register(c.ID(), kind, s.tick.Load())
	s.collector.RecordBirth(kind)
	s.events.Add(telemetry.NewBirthEvent(s.tick.Load(), c.ID(), kind))
	s.launch(c)
	return nil
}

// newController builds a controller; constructing it registers it.
func (s *Simulation) newController(epoch uint64, kind components.Kind, pos components.Position, seed int64) agents.Controller {
	env := agents.Env{
		Registry: s.registry,
		Spawner:  epochSpawner{sim: s, epoch: epoch},
		Recorder: recorder{sim: s, epoch: epoch},
	}
	rng := rand.New(rand.NewSource(seed))
	id := components.NewID()

	if kind == components.KindPredator {
		return agents.NewPredator(id, pos, s.cfg.Predator, env, rng)
	}
	return agents.NewPrey(id, pos, s.cfg.Prey, env, rng)
}

// SpawnAgent adds one agent of the given kind at a random location.
func (s *Simulation) SpawnAgent(kind components.Kind) error {
	pos := s.randomSpawnPosition(kind)
	if err := s.spawn(s.epoch.Load(), kind, pos); err != nil {
		return fmt.Errorf("spawning %s: %w", kind, err)
	}
	slog.Info("agent_spawned", "kind", kind.String(), "x", pos.X, "y", pos.Y)
	return nil
}

func (s *Simulation) randomSpawnPosition(kind components.Kind) components.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := s.cfg.World.Width, s.cfg.World.Height
	if kind == components.KindPredator {
		m := s.cfg.Population.PredatorSpawnMargin
		return components.Pos(m+s.rng.Float64()*(w-2*m), m+s.rng.Float64()*(h-2*m))
	}
	return components.Pos(s.rng.Float64()*w, s.rng.Float64()*h)
}

// populate spawns the initial population if the world is empty.
func (s *Simulation) populate() {
	if s.registry.Len() > 0 {
		return
	}
	epoch := s.epoch.Load()
	for i := 0; i < s.cfg.Prey.InitialCount; i++ {
		if err := s.spawn(epoch, components.KindPrey, s.randomSpawnPosition(components.KindPrey)); err != nil {
			slog.Warn("initial spawn failed", "kind", "prey", "error", err)
			break
		}
	}
	for i := 0; i < s.cfg.Predator.InitialCount; i++ {
		if err := s.spawn(epoch, components.KindPredator, s.randomSpawnPosition(components.KindPredator)); err != nil {
			slog.Warn("initial spawn failed", "kind", "predator", "error", err)
			break
		}
	}
	slog.Info("population_seeded",
		"prey", s.registry.CountOfKind(components.KindPrey),
		"predators", s.registry.CountOfKind(components.KindPredator),
	)
}

// SpawnFoodBatch drops the configured manual batch of food.
func (s *Simulation) SpawnFoodBatch() int {
	n := s.cfg.Food.ManualBatch
	s.spawnFood(n)
	slog.Info("food_added", "count", n)
	return n
}

func (s *Simulation) spawnFood(n int) {
	m := s.cfg.Food.SpawnMargin
	w, h := s.cfg.World.Width, s.cfg.World.Height

	s.mu.Lock()
	points := make([]components.Position, n)
	for i := range points {
		points[i] = components.Pos(m+s.rng.Float64()*(w-2*m), m+s.rng.Float64()*(h-2*m))
	}
	s.mu.Unlock()

	for _, p := range points {
		s.registry.SpawnFood(p)
	}
}

// Remove takes an agent out of the world. Its controller stops on its next
// tick.
func (s *Simulation) Remove(id components.ID) bool {
	rec, ok := s.registry.Get(id)
	if !ok || !s.registry.Unregister(id) {
		return false
	}
	recorder{sim: s, epoch: s.epoch.Load()}.RecordDeath(id, rec.Kind, telemetry.CauseRemoved)
	slog.Info("agent_removed", "id", id, "kind", rec.Kind.String())
	return true
}

// RemoveAt removes the agent under pos, as picked by an operator. Predators
// win over prey when both are within the collision distance.
func (s *Simulation) RemoveAt(pos components.Position) (components.AgentRecord, bool) {
	for _, kind := range []components.Kind{components.KindPredator, components.KindPrey} {
		rec, ok := s.registry.CheckCollision(kind, pos, s.cfg.World.CollisionDistance)
		if ok && s.Remove(rec.ID) {
			return rec, true
		}
	}
	return components.AgentRecord{}, false
}

// Pause stops agent ticks and the world clock until Resume.
func (s *Simulation) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.resumeCh = make(chan struct{})
	slog.Info("simulation_paused", "tick", s.tick.Load())
}

// Resume restarts agent ticks and the world clock.
func (s *Simulation) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumeCh)
	slog.Info("simulation_resumed", "tick", s.tick.Load())
}

// Paused reports whether the simulation is paused.
func (s *Simulation) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// pauseGate returns a channel that is closed when the simulation is running.
func (s *Simulation) pauseGate() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeCh
}

// Restart clears every agent and food item, resets telemetry and, if a
// runner is active, seeds a fresh initial population. Controllers from the
// previous run stop on their next tick and can no longer spawn.
func (s *Simulation) Restart() {
	s.tickMu.Lock()
	s.mu.Lock()
	s.epoch.Add(1)
	removed := s.registry.Len()
	s.registry.Clear()
	running := s.launch != nil
	s.mu.Unlock()

	tick := s.tick.Load()
	s.collector.Reset(tick)
	s.lifetime.Reset()
	s.history.Reset()
	s.bookmarks.Reset()
	s.events.Reset()
	s.tickMu.Unlock()

	slog.Info("simulation_restarted", "tick", tick, "removed", removed, "epoch", s.epoch.Load())
	if running {
		s.populate()
	}
}

// setLauncher installs the runner's controller launcher; nil marks the
// simulation stopped.
func (s *Simulation) setLauncher(fn func(agents.Controller)) {
	s.mu.Lock()
	s.launch = fn
	s.mu.Unlock()
}
