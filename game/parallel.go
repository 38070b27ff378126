package game

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pthm-cable/preypred/agents"
	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/telemetry"
)

// parallelThreshold is the minimum number of due controllers to fan out to
// the worker pool. Below this, single-threaded is faster due to goroutine
// overhead.
const parallelThreshold = 64

// scheduled is a controller waiting on the virtual clock.
type scheduled struct {
	c   agents.Controller
	due time.Duration
}

// workChunk represents a range of due controllers for a worker to tick.
type workChunk struct {
	start, end int
}

// headlessState runs controllers against a virtual clock in fixed quanta.
// Every controller whose next tick falls inside a quantum is ticked once,
// possibly in parallel; spawns made during a quantum join on the next one.
type headlessState struct {
	sim     *Simulation
	quantum time.Duration

	now       time.Duration
	nextWorld time.Duration
	queue     []scheduled
	due       []agents.Controller
	outcomes  []agents.Outcome

	pendingMu sync.Mutex
	pending   []agents.Controller

	// Worker pool channels
	numWorkers int
	workChan   chan workChunk // sends work to workers
	doneChan   chan struct{}  // workers signal completion
	stopChan   chan struct{}  // signals workers to exit
	wg         sync.WaitGroup // tracks active workers
	running    bool           // true if workers are running
}

func newHeadlessState(s *Simulation) *headlessState {
	numWorkers := s.cfg.Schedule.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &headlessState{
		sim:        s,
		quantum:    s.cfg.Schedule.HeadlessQuantum,
		nextWorld:  s.cfg.Schedule.WorldTick,
		numWorkers: numWorkers,
		queue:      make([]scheduled, 0, 512),
	}
}

// enqueue accepts a newly spawned controller. Safe from any goroutine.
func (h *headlessState) enqueue(c agents.Controller) {
	h.pendingMu.Lock()
	h.pending = append(h.pending, c)
	h.pendingMu.Unlock()
}

// startWorkers launches persistent worker goroutines.
func (h *headlessState) startWorkers() {
	if h.running {
		return
	}

	h.workChan = make(chan workChunk, h.numWorkers)
	h.doneChan = make(chan struct{}, h.numWorkers)
	h.stopChan = make(chan struct{})
	h.running = true

	for i := 0; i < h.numWorkers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (h *headlessState) stopWorkers() {
	if !h.running {
		return
	}

	close(h.stopChan)
	h.wg.Wait()
	close(h.workChan)
	close(h.doneChan)
	h.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (h *headlessState) worker() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopChan:
			return
		case chunk, ok := <-h.workChan:
			if !ok {
				return
			}
			h.tickChunk(chunk.start, chunk.end)
			h.doneChan <- struct{}{}
		}
	}
}

func (h *headlessState) tickChunk(i0, i1 int) {
	for i := i0; i < i1; i++ {
		h.outcomes[i] = h.due[i].Tick()
	}
}

// tickParallel dispatches the due controllers to the worker pool.
func (h *headlessState) tickParallel(n int) {
	if !h.running {
		h.startWorkers()
	}

	chunkSize := (n + h.numWorkers - 1) / h.numWorkers

	chunksDispatched := 0
	for w := 0; w < h.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		h.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-h.doneChan
	}
}

// step advances the virtual clock by one quantum.
func (h *headlessState) step() {
	h.now += h.quantum

	// Adopt spawns from the previous quantum; they tick now.
	h.pendingMu.Lock()
	for _, c := range h.pending {
		h.queue = append(h.queue, scheduled{c: c, due: h.now})
	}
	h.pending = h.pending[:0]
	h.pendingMu.Unlock()

	// Phase A: collect due controllers
	h.due = h.due[:0]
	waiting := h.queue[:0]
	for _, sc := range h.queue {
		if sc.due <= h.now {
			h.due = append(h.due, sc.c)
		} else {
			waiting = append(waiting, sc)
		}
	}
	h.queue = waiting

	n := len(h.due)
	if n == 0 {
		return
	}
	if cap(h.outcomes) < n {
		h.outcomes = make([]agents.Outcome, n)
	}
	h.outcomes = h.outcomes[:n]

	// Phase B: tick
	if n < parallelThreshold {
		h.tickChunk(0, n)
	} else {
		h.tickParallel(n)
	}
	h.sim.perf.AddAgentTicks(n)

	// Phase C: reschedule survivors
	for i, c := range h.due {
		out := h.outcomes[i]
		if out.Done {
			continue
		}
		delay := max(out.Delay, h.quantum)
		h.queue = append(h.queue, scheduled{c: c, due: h.now + delay})
	}
}

// live returns the number of controllers the headless clock is tracking.
func (h *headlessState) live() int {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return len(h.queue) + len(h.pending)
}

// RunHeadless drives the simulation on a virtual clock as fast as possible.
// It returns the final world tick when ctx is cancelled, the tick limit is
// reached, or (with StopOnExtinction) either species dies out.
func (s *Simulation) RunHeadless(ctx context.Context) (int64, error) {
	h := newHeadlessState(s)
	s.setLauncher(h.enqueue)
	defer s.setLauncher(nil)
	defer h.stopWorkers()

	slog.Info("simulation_started",
		"mode", "headless",
		"seed", s.opts.Seed,
		"quantum", h.quantum,
		"workers", h.numWorkers,
	)
	s.populate()

	for {
		if err := ctx.Err(); err != nil {
			return s.Tick(), err
		}
		if s.opts.MaxTicks > 0 && s.Tick() >= s.opts.MaxTicks {
			break
		}
		if s.opts.StopOnExtinction && s.extinct() {
			slog.Info("extinction", "tick", s.Tick(),
				"prey", s.registry.CountOfKind(components.KindPrey),
				"predators", s.registry.CountOfKind(components.KindPredator),
			)
			break
		}

		select {
		case <-ctx.Done():
			return s.Tick(), ctx.Err()
		case <-s.pauseGate():
		}

		s.perf.StartTick()
		s.perf.StartPhase(telemetry.PhaseAgents)
		for h.now < h.nextWorld {
			h.step()
		}
		s.worldTick()
		h.nextWorld += s.cfg.Schedule.WorldTick
		s.perf.EndTick()
	}

	slog.Info("simulation_stopped", "tick", s.Tick(), "agents", s.registry.Len(), "controllers", h.live())
	return s.Tick(), nil
}

// extinct reports whether either species has no members left.
func (s *Simulation) extinct() bool {
	return s.registry.CountOfKind(components.KindPrey) == 0 ||
		s.registry.CountOfKind(components.KindPredator) == 0
}
