package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/preypred/agents"
)

// errTickLimit ends a run once Options.MaxTicks world ticks have elapsed.
var errTickLimit = errors.New("tick limit reached")

// Run drives the simulation in real time: one goroutine per controller,
// sleeping for whatever delay its last tick asked for, plus the world clock.
// It seeds the initial population and blocks until ctx is cancelled or the
// tick limit is reached.
func (s *Simulation) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.setLauncher(func(c agents.Controller) {
		g.Go(func() error {
			return s.runController(ctx, c)
		})
	})
	g.Go(func() error {
		// Clearing the launcher before this goroutine exits keeps the group
		// non-empty for every Go call.
		defer s.setLauncher(nil)
		return s.runWorldClock(ctx)
	})

	slog.Info("simulation_started",
		"mode", "realtime",
		"seed", s.opts.Seed,
		"world_tick", s.cfg.Schedule.WorldTick,
	)
	s.populate()

	err := g.Wait()
	slog.Info("simulation_stopped", "tick", s.Tick(), "agents", s.registry.Len())
	if errors.Is(err, errTickLimit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runController ticks one controller until it reports Done or the run ends.
func (s *Simulation) runController(ctx context.Context, c agents.Controller) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.pauseGate():
		}

		out := c.Tick()
		s.perf.AddAgentTicks(1)
		if out.Done {
			return nil
		}
		timer.Reset(out.Delay)
	}
}

// runWorldClock fires a world tick every schedule.world_tick while running.
func (s *Simulation) runWorldClock(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Schedule.WorldTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if s.Paused() {
			continue
		}

		s.perf.StartTick()
		s.worldTick()
		s.perf.EndTick()

		if s.opts.MaxTicks > 0 && s.Tick() >= s.opts.MaxTicks {
			return errTickLimit
		}
	}
}
