package game

import (
	"log/slog"

	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Simulation) flushTelemetry(tick int64) {
	if !s.collector.ShouldFlush(tick) {
		return
	}

	preyEnergies := energies(s.registry.AllOfKind(components.KindPrey))
	predEnergies := energies(s.registry.AllOfKind(components.KindPredator))

	stats := s.collector.Flush(tick, telemetry.Population{
		Prey:         len(preyEnergies),
		Predators:    len(predEnergies),
		Food:         s.registry.FoodCount(),
		PreyEnergies: preyEnergies,
		PredEnergies: predEnergies,
	})
	perfStats := s.perf.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range s.bookmarks.Check(stats) {
		if s.opts.LogStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		if s.opts.SnapshotDir != "" {
			s.saveSnapshot(&bm)
		}
	}
}

func energies(recs []components.AgentRecord) []float64 {
	out := make([]float64, len(recs))
	for i, rec := range recs {
		out[i] = float64(rec.Energy)
	}
	return out
}

// saveSnapshot creates and saves a snapshot to disk.
func (s *Simulation) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := s.createSnapshot(bookmark)

	path, err := telemetry.SaveSnapshot(snapshot, s.opts.SnapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", snapshot.Tick)
}

// Snapshot captures the current world and telemetry state.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	return s.createSnapshot(nil)
}

func (s *Simulation) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	world := s.registry.Snapshot()
	return &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		RNGSeed:     s.opts.Seed,
		WorldWidth:  s.cfg.World.Width,
		WorldHeight: s.cfg.World.Height,
		Tick:        s.tick.Load(),
		Agents:      world.Agents,
		Food:        world.Food,
		Lifetimes:   s.lifetime.All(),
		History:     s.history.Points(),
		Bookmark:    bookmark,
	}
}
