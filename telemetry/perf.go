package telemetry

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Phase names for the world tick.
const (
	PhaseAgents    = "agents" // headless only: running due controllers
	PhaseFood      = "food"
	PhaseHistory   = "history"
	PhaseTelemetry = "telemetry"
	PhaseBroadcast = "broadcast"
)

// PerfSample holds timing data for a single world tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window. Tick timing
// is driven by one goroutine; agent tick counting is safe from any.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string

	// Agent throughput
	agentTicks  atomic.Int64
	windowStart time.Time

	proc *process.Process
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of world ticks to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 100
	}
	p := &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		windowStart:   time.Now(),
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("process sampling unavailable", "error", err)
	} else {
		p.proc = proc
	}
	return p
}

// StartTick begins timing a new world tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	// End previous phase if any
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	// End final phase
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// AddAgentTicks counts controller ticks run since the last Stats call.
func (p *PerfCollector) AddAgentTicks(n int) {
	p.agentTicks.Add(int64(n))
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// World tick timing
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total tick time
	PhasePct map[string]float64

	// Throughput
	TicksPerSecond      float64
	AgentTicksPerSecond float64

	// Process
	RSSBytes   uint64
	CPUPercent float64
}

// Stats computes aggregated statistics over the current window and restarts
// the agent throughput window.
func (p *PerfCollector) Stats() PerfStats {
	now := time.Now()
	var agentRate float64
	if elapsed := now.Sub(p.windowStart).Seconds(); elapsed > 0 {
		agentRate = float64(p.agentTicks.Swap(0)) / elapsed
	}
	p.windowStart = now

	rss, cpu := p.sampleProcess()

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg:            make(map[string]time.Duration),
			PhasePct:            make(map[string]float64),
			AgentTicksPerSecond: agentRate,
			RSSBytes:            rss,
			CPUPercent:          cpu,
		}
	}

	var totalTick time.Duration
	var minTick, maxTick time.Duration
	phaseSum := make(map[string]time.Duration)

	// Iterate over valid samples
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalTick += s.TickDuration

		if i == 0 || s.TickDuration < minTick {
			minTick = s.TickDuration
		}
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avgTick := totalTick / time.Duration(p.sampleCount)

	// Calculate phase averages and percentages
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avgTick > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgTick) * 100
		}
	}

	var ticksPerSec float64
	if avgTick > 0 {
		ticksPerSec = float64(time.Second) / float64(avgTick)
	}

	return PerfStats{
		AvgTickDuration:     avgTick,
		MinTickDuration:     minTick,
		MaxTickDuration:     maxTick,
		PhaseAvg:            phaseAvg,
		PhasePct:            phasePct,
		TicksPerSecond:      ticksPerSec,
		AgentTicksPerSecond: agentRate,
		RSSBytes:            rss,
		CPUPercent:          cpu,
	}
}

func (p *PerfCollector) sampleProcess() (rss uint64, cpu float64) {
	if p.proc == nil {
		return 0, 0
	}
	if mem, err := p.proc.MemoryInfo(); err == nil {
		rss = mem.RSS
	}
	if pct, err := p.proc.CPUPercent(); err == nil {
		cpu = pct
	}
	return rss, cpu
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"agent_ticks_per_sec", int(s.AgentTicksPerSecond),
		"rss_mb", s.RSSBytes >> 20,
		"cpu_pct", int(s.CPUPercent),
	}

	for _, phase := range []string{PhaseAgents, PhaseFood, PhaseHistory, PhaseTelemetry, PhaseBroadcast} {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd        int64   `csv:"window_end"`
	AvgTickUS        int64   `csv:"avg_tick_us"`
	MinTickUS        int64   `csv:"min_tick_us"`
	MaxTickUS        int64   `csv:"max_tick_us"`
	TicksPerSec      float64 `csv:"ticks_per_sec"`
	AgentTicksPerSec float64 `csv:"agent_ticks_per_sec"`
	RSSBytes         uint64  `csv:"rss_bytes"`
	CPUPercent       float64 `csv:"cpu_pct"`
	AgentsPct        float64 `csv:"agents_pct"`
	FoodPct          float64 `csv:"food_pct"`
	HistoryPct       float64 `csv:"history_pct"`
	TelemetryPct     float64 `csv:"telemetry_pct"`
	BroadcastPct     float64 `csv:"broadcast_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:        windowEnd,
		AvgTickUS:        s.AvgTickDuration.Microseconds(),
		MinTickUS:        s.MinTickDuration.Microseconds(),
		MaxTickUS:        s.MaxTickDuration.Microseconds(),
		TicksPerSec:      s.TicksPerSecond,
		AgentTicksPerSec: s.AgentTicksPerSecond,
		RSSBytes:         s.RSSBytes,
		CPUPercent:       s.CPUPercent,
		AgentsPct:        s.PhasePct[PhaseAgents],
		FoodPct:          s.PhasePct[PhaseFood],
		HistoryPct:       s.PhasePct[PhaseHistory],
		TelemetryPct:     s.PhasePct[PhaseTelemetry],
		BroadcastPct:     s.PhasePct[PhaseBroadcast],
	}
}
