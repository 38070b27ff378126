// Package components defines the value types shared by the registry, the
// agent controllers and the presentation feed.
package components

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind distinguishes the two agent species.
type Kind uint8

const (
	KindPrey Kind = iota
	KindPredator
)

// String returns the lower-case species name.
func (k Kind) String() string {
	switch k {
	case KindPrey:
		return "prey"
	case KindPredator:
		return "predator"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "prey":
		*k = KindPrey
	case "predator":
		*k = KindPredator
	default:
		return fmt.Errorf("unknown kind %q", text)
	}
	return nil
}

// ID is the opaque per-agent handle assigned by the runtime.
type ID = uuid.UUID

// NewID returns a fresh random identifier.
func NewID() ID {
	return uuid.New()
}

// Identity is the ECS component holding an agent's key and species.
type Identity struct {
	ID   ID
	Kind Kind
}

// Energy is the ECS component holding an agent's published energy.
type Energy struct {
	Value int
}

// AgentRecord is a copy of one agent's publicly visible state.
type AgentRecord struct {
	ID       ID       `json:"id"`
	Kind     Kind     `json:"kind"`
	Position Position `json:"position"`
	Energy   int      `json:"energy"`
}

// IsPrey reports whether the record belongs to a prey.
func (a AgentRecord) IsPrey() bool { return a.Kind == KindPrey }

// IsPredator reports whether the record belongs to a predator.
func (a AgentRecord) IsPredator() bool { return a.Kind == KindPredator }

func (a AgentRecord) String() string {
	return fmt.Sprintf("%s[%s] at %s, energy=%d", a.Kind, a.ID.String()[:8], a.Position, a.Energy)
}

// Food is a consumable energy source. Consumed flips to true exactly once,
// at which point the item leaves the registry for good.
type Food struct {
	ID          uint64   `json:"id"`
	Position    Position `json:"position"`
	EnergyValue int      `json:"energy_value"`
	Consumed    bool     `json:"consumed"`
}

func (f Food) String() string {
	return fmt.Sprintf("food#%d at %s (energy=%d)", f.ID, f.Position, f.EnergyValue)
}
