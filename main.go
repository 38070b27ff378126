package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/preypred/config"
	"github.com/pthm-cable/preypred/game"
	"github.com/pthm-cable/preypred/server"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run on a virtual clock as fast as possible")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Int("stats-window", 0, "Stats window size in world ticks (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N world ticks (0 = unlimited)")
	stopOnExtinction := flag.Bool("stop-on-extinction", false, "Headless: stop when either species dies out")
	addr := flag.String("addr", "", "Feed listen address, e.g. :8080 (empty = use config)")
	debug := flag.Bool("debug", false, "Log individual agent events")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	sim, err := game.New(cfg, game.Options{
		Seed:             rngSeed,
		LogStats:         *logStats,
		SnapshotDir:      *snapshotDir,
		OutputDir:        *outputDir,
		MaxTicks:         *maxTicks,
		StopOnExtinction: *stopOnExtinction,
	})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sim.Close(); err != nil {
			slog.Error("failed to close output", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *headless {
		tick, err := sim.RunHeadless(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Error("simulation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("headless run finished", "tick", tick, "seed", rngSeed)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Server.Addr != "" {
		feed := server.New(sim)
		sim.SetFrameCallback(feed.Broadcast)
		g.Go(func() error {
			return feed.ListenAndServe(ctx, cfg.Server.Addr)
		})
	}
	g.Go(func() error {
		defer stop()
		return sim.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}
