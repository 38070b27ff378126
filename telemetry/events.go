package telemetry

import (
	"sync"

	"github.com/pthm-cable/preypred/components"
)

// EventType identifies telemetry events.
type EventType string

const (
	EventBirth  EventType = "birth"
	EventDeath  EventType = "death"
	EventKill   EventType = "kill"
	EventForage EventType = "forage"
)

// Event represents a single agent event for the presentation feed.
type Event struct {
	Type  EventType       `json:"type"`
	Tick  int64           `json:"tick"`
	Agent components.ID   `json:"agent"`
	Kind  components.Kind `json:"kind"`

	// Optional fields depending on event type
	Target components.ID `json:"target,omitempty"` // prey taken in a kill
	Cause  DeathCause    `json:"cause,omitempty"`
	Amount int           `json:"amount,omitempty"` // energy gained foraging
}

// NewBirthEvent creates a birth event.
func NewBirthEvent(tick int64, id components.ID, kind components.Kind) Event {
	return Event{Type: EventBirth, Tick: tick, Agent: id, Kind: kind}
}

// NewDeathEvent creates a death event.
func NewDeathEvent(tick int64, id components.ID, kind components.Kind, cause DeathCause) Event {
	return Event{Type: EventDeath, Tick: tick, Agent: id, Kind: kind, Cause: cause}
}

// NewKillEvent creates a kill event.
func NewKillEvent(tick int64, predator, prey components.ID) Event {
	return Event{
		Type:   EventKill,
		Tick:   tick,
		Agent:  predator,
		Kind:   components.KindPredator,
		Target: prey,
	}
}

// NewForageEvent creates a foraging event (prey gaining energy from food or grazing).
func NewForageEvent(tick int64, prey components.ID, amount int) Event {
	return Event{Type: EventForage, Tick: tick, Agent: prey, Kind: components.KindPrey, Amount: amount}
}

// EventLog buffers events between feed broadcasts. When full the oldest
// events are dropped.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	max    int
}

// NewEventLog creates a log holding at most size events.
func NewEventLog(size int) *EventLog {
	if size < 1 {
		size = 1
	}
	return &EventLog{events: make([]Event, 0, size), max: size}
}

// Add appends an event.
func (l *EventLog) Add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == l.max {
		copy(l.events, l.events[1:])
		l.events = l.events[:l.max-1]
	}
	l.events = append(l.events, ev)
}

// Drain returns the buffered events and empties the log.
func (l *EventLog) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return nil
	}
	out := make([]Event, len(l.events))
	copy(out, l.events)
	l.events = l.events[:0]
	return out
}

// Reset discards all buffered events.
func (l *EventLog) Reset() {
	l.mu.Lock()
	l.events = l.events[:0]
	l.mu.Unlock()
}
