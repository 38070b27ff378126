package telemetry

import (
	"sync"

	"github.com/pthm-cable/preypred/components"
)

// LifetimeStats tracks per-agent statistics over its lifetime.
type LifetimeStats struct {
	Kind      components.Kind `json:"kind"`
	BirthTick int64           `json:"birth_tick"`

	// Hunting (predators)
	Kills int `json:"kills"`

	// Reproduction
	Children int `json:"children"`

	// Feeding (prey)
	FoodEaten    int `json:"food_eaten"`
	TotalForaged int `json:"total_foraged"` // energy from food items and grazing
}

// LifetimeTracker manages per-agent lifetime statistics. Safe for
// concurrent use.
type LifetimeTracker struct {
	mu    sync.Mutex
	stats map[components.ID]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[components.ID]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new agent.
func (lt *LifetimeTracker) Register(id components.ID, kind components.Kind, birthTick int64) {
	lt.mu.Lock()
	lt.stats[id] = &LifetimeStats{Kind: kind, BirthTick: birthTick}
	lt.mu.Unlock()
}

// Get returns a copy of the lifetime stats for an agent.
func (lt *LifetimeTracker) Get(id components.ID) (LifetimeStats, bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	s, ok := lt.stats[id]
	if !ok {
		return LifetimeStats{}, false
	}
	return *s, true
}

// Remove removes an agent's stats and returns them.
func (lt *LifetimeTracker) Remove(id components.ID) (LifetimeStats, bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	s, ok := lt.stats[id]
	if !ok {
		return LifetimeStats{}, false
	}
	delete(lt.stats, id)
	return *s, true
}

func (lt *LifetimeTracker) update(id components.ID, fn func(*LifetimeStats)) {
	lt.mu.Lock()
	if s := lt.stats[id]; s != nil {
		fn(s)
	}
	lt.mu.Unlock()
}

// RecordKill increments kill count.
func (lt *LifetimeTracker) RecordKill(id components.ID) {
	lt.update(id, func(s *LifetimeStats) { s.Kills++ })
}

// RecordChild increments children count.
func (lt *LifetimeTracker) RecordChild(parent components.ID) {
	lt.update(parent, func(s *LifetimeStats) { s.Children++ })
}

// RecordForage adds foraging gain to the cumulative total. Food items also
// bump the food counter.
func (lt *LifetimeTracker) RecordForage(id components.ID, amount int, fromFood bool) {
	lt.update(id, func(s *LifetimeStats) {
		s.TotalForaged += amount
		if fromFood {
			s.FoodEaten++
		}
	})
}

// All returns a copy of all tracked stats (for snapshots).
func (lt *LifetimeTracker) All() map[components.ID]LifetimeStats {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	out := make(map[components.ID]LifetimeStats, len(lt.stats))
	for id, s := range lt.stats {
		out[id] = *s
	}
	return out
}

// Count returns the number of tracked agents.
func (lt *LifetimeTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.stats)
}

// Reset forgets every tracked agent.
func (lt *LifetimeTracker) Reset() {
	lt.mu.Lock()
	clear(lt.stats)
	lt.mu.Unlock()
}
