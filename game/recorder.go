package game

import (
	"github.com/pthm-cable/preypred/components"
	"github.com/pthm-cable/preypred/telemetry"
)

// recorder fans controller events out to the window collector and the
// per-agent lifetime tracker. Events from a previous run are dropped.
type recorder struct {
	sim   *Simulation
	epoch uint64
}

func (r recorder) current() bool {
	return r.sim.epoch.Load() == r.epoch
}

// RecordDeath also accepts stale reports for agents of the current run, so a
// late capture by an old controller still leaves the stats.
func (r recorder) RecordDeath(id components.ID, kind components.Kind, cause telemetry.DeathCause) {
	lt, tracked := r.sim.lifetime.Remove(id)
	if !tracked && !r.current() {
		return
	}
	var lifespan int64
	if tracked {
		lifespan = r.sim.tick.Load() - lt.BirthTick
	}
	r.sim.collector.RecordDeath(kind, cause, lifespan)
	r.sim.events.Add(telemetry.NewDeathEvent(r.sim.tick.Load(), id, kind, cause))
}

func (r recorder) RecordKill(predator, prey components.ID) {
	if !r.current() {
		return
	}
	r.sim.collector.RecordKill()
	r.sim.lifetime.RecordKill(predator)
	r.sim.events.Add(telemetry.NewKillEvent(r.sim.tick.Load(), predator, prey))
}

func (r recorder) RecordFoodEaten(id components.ID, amount int) {
	if !r.current() {
		return
	}
	r.sim.collector.RecordFoodEaten()
	r.sim.lifetime.RecordForage(id, amount, true)
	r.sim.events.Add(telemetry.NewForageEvent(r.sim.tick.Load(), id, amount))
}

func (r recorder) RecordGraze(id components.ID, amount int) {
	if !r.current() {
		return
	}
	r.sim.collector.RecordGraze()
	r.sim.lifetime.RecordForage(id, amount, false)
}

func (r recorder) RecordReproduction(parent components.ID, kind components.Kind) {
	if !r.current() {
		return
	}
	r.sim.collector.RecordReproduction(kind)
	r.sim.lifetime.RecordChild(parent)
}

func (r recorder) RecordSpawnFailure(components.Kind) {
	if !r.current() {
		return
	}
	r.sim.collector.RecordSpawnFailure()
}
