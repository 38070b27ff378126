package telemetry

import "sync"

// PopulationPoint is one sample of the population chart.
type PopulationPoint struct {
	Tick      int64 `json:"tick" csv:"tick"`
	Prey      int   `json:"prey" csv:"prey"`
	Predators int   `json:"predators" csv:"predators"`
	Food      int   `json:"food" csv:"food"`
}

// History is a bounded ring of population samples, oldest dropped first.
type History struct {
	mu     sync.RWMutex
	points []PopulationPoint
	next   int
	full   bool
}

// NewHistory creates a history holding at most size points.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{points: make([]PopulationPoint, size)}
}

// Add appends a sample, evicting the oldest when full.
func (h *History) Add(p PopulationPoint) {
	h.mu.Lock()
	h.points[h.next] = p
	h.next = (h.next + 1) % len(h.points)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
}

// Points returns the samples oldest first.
func (h *History) Points() []PopulationPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		out := make([]PopulationPoint, h.next)
		copy(out, h.points[:h.next])
		return out
	}
	out := make([]PopulationPoint, 0, len(h.points))
	out = append(out, h.points[h.next:]...)
	out = append(out, h.points[:h.next]...)
	return out
}

// Latest returns the most recent sample.
func (h *History) Latest() (PopulationPoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full && h.next == 0 {
		return PopulationPoint{}, false
	}
	idx := (h.next - 1 + len(h.points)) % len(h.points)
	return h.points[idx], true
}

// Reset drops every sample.
func (h *History) Reset() {
	h.mu.Lock()
	h.next = 0
	h.full = false
	h.mu.Unlock()
}
