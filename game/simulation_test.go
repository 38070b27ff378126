package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pthm-cable/preypred/agents"
	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/config"
	"github.com/pthm-cable/preypred/telemetry"
)

func newTestSim(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// discard is a launcher that registers controllers without running them.
func discard(agents.Controller) {}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.World.Width = 0
	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("New accepted a zero-width world")
	}
}

func TestSpawnAgentNotRunning(t *testing.T) {
	s := newTestSim(t, nil, Options{})
	if err := s.SpawnAgent(components.KindPrey); !errors.Is(err, ErrStopped) {
		t.Fatalf("SpawnAgent before start = %v, want ErrStopped", err)
	}
	if s.registry.Len() != 0 {
		t.Errorf("registry has %d agents, want 0", s.registry.Len())
	}
}

func TestSpawnRespectsPopulationCap(t *testing.T) {
	cfg := config.Default()
	cfg.Population.MaxPrey = 5
	s := newTestSim(t, cfg, Options{Seed: 1})
	s.setLauncher(discard)

	for i := 0; i < 5; i++ {
		if err := s.SpawnAgent(components.KindPrey); err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
	}
	if err := s.SpawnAgent(components.KindPrey); !errors.Is(err, ErrPopulationCap) {
		t.Fatalf("spawn past cap = %v, want ErrPopulationCap", err)
	}
	if err := s.SpawnAgent(components.KindPredator); err != nil {
		t.Errorf("predator cap is separate, got %v", err)
	}
	if got := s.registry.CountOfKind(components.KindPrey); got != 5 {
		t.Errorf("prey = %d, want 5", got)
	}
}

func TestSpawnPositionsInBounds(t *testing.T) {
	s := newTestSim(t, nil, Options{Seed: 7})
	m := s.cfg.Population.PredatorSpawnMargin
	for i := 0; i < 200; i++ {
		p := s.randomSpawnPosition(components.KindPredator)
		if p.X < m || p.X > s.cfg.World.Width-m || p.Y < m || p.Y > s.cfg.World.Height-m {
			t.Fatalf("predator spawn %v outside margin %v", p, m)
		}
		q := s.randomSpawnPosition(components.KindPrey)
		if q.X < 0 || q.X > s.cfg.World.Width || q.Y < 0 || q.Y > s.cfg.World.Height {
			t.Fatalf("prey spawn %v outside world", q)
		}
	}
}

func TestStaleSpawnerRejected(t *testing.T) {
	s := newTestSim(t, nil, Options{Seed: 3})
	s.setLauncher(discard)

	old := epochSpawner{sim: s, epoch: s.epoch.Load()}
	s.Restart()

	err := old.Spawn(components.KindPrey, components.Pos(100, 100))
	if !errors.Is(err, ErrStaleSpawner) {
		t.Fatalf("old spawner = %v, want ErrStaleSpawner", err)
	}

	fresh := epochSpawner{sim: s, epoch: s.epoch.Load()}
	if err := fresh.Spawn(components.KindPrey, components.Pos(100, 100)); err != nil {
		t.Errorf("current spawner: %v", err)
	}
}

func TestRestartClearsWorld(t *testing.T) {
	s := newTestSim(t, nil, Options{Seed: 5})
	s.setLauncher(discard)
	s.populate()
	s.SpawnFoodBatch()

	if s.registry.Len() != 23 || s.registry.FoodCount() != 5 {
		t.Fatalf("setup: agents=%d food=%d", s.registry.Len(), s.registry.FoodCount())
	}

	// Not running: the world stays empty.
	s.setLauncher(nil)
	s.Restart()
	if s.registry.Len() != 0 || s.registry.FoodCount() != 0 {
		t.Errorf("after restart: agents=%d food=%d, want 0/0", s.registry.Len(), s.registry.FoodCount())
	}
	if s.lifetime.Count() != 0 {
		t.Errorf("lifetimes = %d, want 0", s.lifetime.Count())
	}

	// Running: a fresh initial population is seeded.
	s.setLauncher(discard)
	s.Restart()
	if got := s.registry.CountOfKind(components.KindPrey); got != 15 {
		t.Errorf("prey after running restart = %d, want 15", got)
	}
	if got := s.registry.CountOfKind(components.KindPredator); got != 8 {
		t.Errorf("predators after running restart = %d, want 8", got)
	}
}

func TestRecorderDropsStaleEvents(t *testing.T) {
	s := newTestSim(t, nil, Options{})
	id := components.NewID()
	s.lifetime.Register(id, components.KindPredator, 0)

	stale := recorder{sim: s, epoch: s.epoch.Load()}
	s.epoch.Add(1)
	s.lifetime.Register(id, components.KindPredator, 0)

	stale.RecordKill(id, components.NewID())
	if lt, _ := s.lifetime.Get(id); lt.Kills != 0 {
		t.Errorf("stale kill recorded: %+v", lt)
	}

	current := recorder{sim: s, epoch: s.epoch.Load()}
	current.RecordKill(id, components.NewID())
	if lt, _ := s.lifetime.Get(id); lt.Kills != 1 {
		t.Errorf("kills = %d, want 1", lt.Kills)
	}
}

func TestStaleRecorderKeepsCurrentRunDeaths(t *testing.T) {
	s := newTestSim(t, nil, Options{})
	stale := recorder{sim: s, epoch: s.epoch.Load()}
	s.epoch.Add(1)

	// A prey of the new run, captured by a predator from the old one.
	prey := components.NewID()
	s.lifetime.Register(prey, components.KindPrey, 0)
	stale.RecordDeath(prey, components.KindPrey, telemetry.CauseEaten)

	if _, ok := s.lifetime.Get(prey); ok {
		t.Error("lifetime entry leaked")
	}
	stats := s.collector.Flush(1, telemetry.Population{})
	if stats.PreyDeaths != 1 || stats.PreyEaten != 1 {
		t.Errorf("deaths = %d eaten = %d, want 1/1", stats.PreyDeaths, stats.PreyEaten)
	}

	// Agents of the old run stay out of the stats.
	stale.RecordDeath(components.NewID(), components.KindPrey, telemetry.CauseStarved)
	if stats := s.collector.Flush(2, telemetry.Population{}); stats.PreyDeaths != 0 {
		t.Errorf("stale death counted: %d", stats.PreyDeaths)
	}
}

func TestRemove(t *testing.T) {
	s := newTestSim(t, nil, Options{})
	s.setLauncher(discard)
	if err := s.SpawnAgent(components.KindPrey); err != nil {
		t.Fatal(err)
	}
	rec := s.registry.AllOfKind(components.KindPrey)[0]

	if !s.Remove(rec.ID) {
		t.Fatal("Remove returned false for a live agent")
	}
	if s.Remove(rec.ID) {
		t.Error("second Remove returned true")
	}
	if _, ok := s.lifetime.Get(rec.ID); ok {
		t.Error("lifetime entry not removed")
	}
}

func TestRemoveAt(t *testing.T) {
	s := newTestSim(t, nil, Options{})
	prey, pred := components.NewID(), components.NewID()
	s.registry.Register(prey, components.KindPrey, components.Pos(100, 100), 50)
	s.registry.Register(pred, components.KindPredator, components.Pos(104, 100), 50)

	tests := []struct {
		name   string
		pos    components.Position
		wantID components.ID
		wantOK bool
	}{
		{"predator first", components.Pos(102, 100), pred, true},
		{"then prey", components.Pos(102, 100), prey, true},
		{"empty", components.Pos(102, 100), components.ID{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := s.RemoveAt(tt.pos)
			if ok != tt.wantOK || rec.ID != tt.wantID {
				t.Errorf("RemoveAt = %v, %v; want %v, %v", rec.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestPauseGate(t *testing.T) {
	s := newTestSim(t, nil, Options{})

	select {
	case <-s.pauseGate():
	default:
		t.Fatal("gate closed while running")
	}

	s.Pause()
	s.Pause() // idempotent
	if !s.Paused() {
		t.Fatal("Paused() = false after Pause")
	}
	gate := s.pauseGate()
	select {
	case <-gate:
		t.Fatal("gate open while paused")
	default:
	}

	s.Resume()
	select {
	case <-gate:
	case <-time.After(time.Second):
		t.Fatal("Resume did not release waiters")
	}
}

func TestSpawnFoodBatchInsideMargin(t *testing.T) {
	s := newTestSim(t, nil, Options{Seed: 9})
	if n := s.SpawnFoodBatch(); n != 5 {
		t.Fatalf("SpawnFoodBatch = %d, want 5", n)
	}
	m := s.cfg.Food.SpawnMargin
	for _, f := range s.registry.AllFood() {
		if f.Position.X < m || f.Position.X > s.cfg.World.Width-m {
			t.Errorf("food at %v outside margin", f.Position)
		}
		if f.EnergyValue != 35 {
			t.Errorf("food energy = %d, want 35", f.EnergyValue)
		}
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestSim(t, nil, Options{Seed: 11})
	s.setLauncher(discard)
	s.populate()

	snap := s.Snapshot()
	if snap.Version != telemetry.SnapshotVersion || snap.RNGSeed != 11 {
		t.Errorf("header = %d/%d", snap.Version, snap.RNGSeed)
	}
	if len(snap.Agents) != 23 || len(snap.Lifetimes) != 23 {
		t.Errorf("agents=%d lifetimes=%d, want 23", len(snap.Agents), len(snap.Lifetimes))
	}
}

func TestRunHeadlessMaxTicks(t *testing.T) {
	var windows []telemetry.WindowStats
	var frames, births int

	s := newTestSim(t, nil, Options{Seed: 42, MaxTicks: 60})
	s.SetStatsCallback(func(ws telemetry.WindowStats) { windows = append(windows, ws) })
	s.SetFrameCallback(func(f Frame) {
		frames++
		for _, ev := range f.Events {
			if ev.Type == telemetry.EventBirth {
				births++
			}
		}
	})

	tick, err := s.RunHeadless(context.Background())
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if tick != 60 {
		t.Errorf("tick = %d, want 60", tick)
	}
	if len(windows) != 1 || windows[0].WindowEndTick != 50 {
		t.Errorf("windows = %+v, want one ending at 50", windows)
	}
	if frames != 60 {
		t.Errorf("frames = %d, want 60", frames)
	}
	if births < 23 {
		t.Errorf("births in frames = %d, want at least the initial 23", births)
	}
	if got := len(s.History()); got != 60 {
		t.Errorf("history = %d points, want 60", got)
	}
	if err := s.SpawnAgent(components.KindPrey); !errors.Is(err, ErrStopped) {
		t.Errorf("spawn after run = %v, want ErrStopped", err)
	}
}

func TestRunHeadlessStopOnExtinction(t *testing.T) {
	cfg := config.Default()
	cfg.Predator.InitialCount = 0
	s := newTestSim(t, cfg, Options{StopOnExtinction: true})

	tick, err := s.RunHeadless(context.Background())
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if tick != 0 {
		t.Errorf("tick = %d, want 0", tick)
	}
}

func TestRunHeadlessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestSim(t, nil, Options{})
	if _, err := s.RunHeadless(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunRealtimeMaxTicks(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule.WorldTick = time.Millisecond
	s := newTestSim(t, cfg, Options{Seed: 1, MaxTicks: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Tick() != 5 {
		t.Errorf("tick = %d, want 5", s.Tick())
	}
}

func TestRunRealtimeCancel(t *testing.T) {
	s := newTestSim(t, nil, Options{Seed: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
