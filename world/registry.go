// Package world provides the shared registry of agents and food.
//
// Every exported Registry method takes the same mutex, so each call is atomic
// with respect to every other call and read methods return copies taken at a
// single instant. Callers that need several calls in sequence (find food,
// then consume it) must tolerate the state changing in between; the mutating
// calls re-validate and report whether they took effect.
package world

import (
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/preypred/components"
)

// Snapshot is a consistent copy of the whole registry.
type Snapshot struct {
	Agents    []components.AgentRecord `json:"agents"`
	Food      []components.Food        `json:"food"`
	Prey      int                      `json:"prey"`
	Predators int                      `json:"predators"`
}

// Registry is the single source of truth for agent records and food items.
type Registry struct {
	mu sync.Mutex

	width, height float64
	foodEnergy    int

	// ECS storage
	world        *ecs.World
	agentMapper  *ecs.Map4[components.Identity, components.Position, components.Energy, gridCell]
	agentFilter  *ecs.Filter4[components.Identity, components.Position, components.Energy, gridCell]
	posMap       *ecs.Map1[components.Position]
	identityMap  *ecs.Map1[components.Identity]
	energyMap    *ecs.Map1[components.Energy]
	cellMap      *ecs.Map1[gridCell]
	index        map[components.ID]ecs.Entity
	kindCounts   [2]int
	grid         *SpatialGrid
	queryScratch []ecs.Entity

	// Food in spawn order
	food       []components.Food
	nextFoodID uint64
}

// New creates an empty registry for a width x height world. Spawned food
// carries foodEnergy.
func New(width, height float64, foodEnergy int) *Registry {
	world := ecs.NewWorld()
	return &Registry{
		width:      width,
		height:     height,
		foodEnergy: foodEnergy,
		world:      world,
		agentMapper: ecs.NewMap4[
			components.Identity,
			components.Position,
			components.Energy,
			gridCell,
		](world),
		agentFilter: ecs.NewFilter4[
			components.Identity,
			components.Position,
			components.Energy,
			gridCell,
		](world),
		posMap:      ecs.NewMap1[components.Position](world),
		identityMap: ecs.NewMap1[components.Identity](world),
		energyMap:   ecs.NewMap1[components.Energy](world),
		cellMap:     ecs.NewMap1[gridCell](world),
		index:       make(map[components.ID]ecs.Entity),
		grid:        NewSpatialGrid(width, height, DefaultCellSize),
	}
}

// Width returns the world width.
func (r *Registry) Width() float64 { return r.width }

// Height returns the world height.
func (r *Registry) Height() float64 { return r.height }

// FoodEnergy returns the energy value given to newly spawned food.
func (r *Registry) FoodEnergy() int { return r.foodEnergy }

func (r *Registry) clamp(p components.Position) components.Position {
	return p.Clamp(0, 0, r.width, r.height)
}

// Register inserts or replaces the record for id. Re-registering an id
// overwrites the existing record in place.
func (r *Registry) Register(id components.ID, kind components.Kind, pos components.Position, energy int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos = r.clamp(pos)
	if e, ok := r.index[id]; ok {
		ident := r.identityMap.Get(e)
		if ident.Kind != kind {
			r.kindCounts[ident.Kind]--
			r.kindCounts[kind]++
			ident.Kind = kind
		}
		r.energyMap.Get(e).Value = energy
		r.setPosition(e, pos)
		return
	}

	ident := components.Identity{ID: id, Kind: kind}
	en := components.Energy{Value: energy}
	cell := gridCell{Index: -1}
	e := r.agentMapper.NewEntity(&ident, &pos, &en, &cell)
	r.cellMap.Get(e).Index = r.grid.Insert(e, pos)
	r.index[id] = e
	r.kindCounts[kind]++
}

// Unregister removes the record for id. It reports whether a record was
// removed; removing an absent id is a no-op.
func (r *Registry) Unregister(id components.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[id]
	if !ok {
		return false
	}
	r.removeEntity(id, e)
	return true
}

func (r *Registry) removeEntity(id components.ID, e ecs.Entity) {
	r.grid.Remove(e, r.cellMap.Get(e).Index)
	r.kindCounts[r.identityMap.Get(e).Kind]--
	r.world.RemoveEntity(e)
	delete(r.index, id)
}

// IsRegistered reports whether id has a live record.
func (r *Registry) IsRegistered(id components.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[id]
	return ok
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id components.ID) (components.AgentRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[id]
	if !ok {
		return components.AgentRecord{}, false
	}
	return r.record(e), true
}

// UpdatePosition clamps pos into the world bounds and stores it. It reports
// false without effect when id is not registered.
func (r *Registry) UpdatePosition(id components.ID, pos components.Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[id]
	if !ok {
		return false
	}
	r.setPosition(e, r.clamp(pos))
	return true
}

// UpdateState is UpdatePosition that also publishes the agent's energy.
func (r *Registry) UpdateState(id components.ID, pos components.Position, energy int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[id]
	if !ok {
		return false
	}
	r.setPosition(e, r.clamp(pos))
	r.energyMap.Get(e).Value = energy
	return true
}

func (r *Registry) setPosition(e ecs.Entity, pos components.Position) {
	*r.posMap.Get(e) = pos
	cell := r.cellMap.Get(e)
	cell.Index = r.grid.Move(e, cell.Index, pos)
}

func (r *Registry) record(e ecs.Entity) components.AgentRecord {
	ident := r.identityMap.Get(e)
	return components.AgentRecord{
		ID:       ident.ID,
		Kind:     ident.Kind,
		Position: *r.posMap.Get(e),
		Energy:   r.energyMap.Get(e).Value,
	}
}

// NearbyAgents returns copies of every record other than excludeID within
// radius (inclusive) of center.
func (r *Registry) NearbyAgents(excludeID components.ID, center components.Position, radius float64) []components.AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var exclude ecs.Entity
	if e, ok := r.index[excludeID]; ok {
		exclude = e
	}

	r.queryScratch = r.grid.QueryRadiusInto(r.queryScratch[:0], center, radius, exclude, r.posMap)
	out := make([]components.AgentRecord, 0, len(r.queryScratch))
	for _, e := range r.queryScratch {
		out = append(out, r.record(e))
	}
	return out
}

// AllOfKind returns copies of every record of the given kind.
func (r *Registry) AllOfKind(kind components.Kind) []components.AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]components.AgentRecord, 0, r.kindCounts[kind])
	query := r.agentFilter.Query()
	for query.Next() {
		ident, pos, energy, _ := query.Get()
		if ident.Kind != kind {
			continue
		}
		out = append(out, components.AgentRecord{ID: ident.ID, Kind: ident.Kind, Position: *pos, Energy: energy.Value})
	}
	return out
}

// CountOfKind returns the number of live records of the given kind.
func (r *Registry) CountOfKind(kind components.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kindCounts[kind]
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// AllAgents returns a copy of every record keyed by id.
func (r *Registry) AllAgents() map[components.ID]components.AgentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[components.ID]components.AgentRecord, len(r.index))
	for id, e := range r.index {
		out[id] = r.record(e)
	}
	return out
}

// CheckCollision returns the first record of the given kind within distance
// of pos. "First" is registry iteration order, not proximity.
func (r *Registry) CheckCollision(kind components.Kind, pos components.Position, distance float64) (components.AgentRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := r.agentFilter.Query()
	for query.Next() {
		ident, p, energy, _ := query.Get()
		if ident.Kind == kind && p.Distance(pos) <= distance {
			rec := components.AgentRecord{ID: ident.ID, Kind: ident.Kind, Position: *p, Energy: energy.Value}
			query.Close()
			return rec, true
		}
	}
	return components.AgentRecord{}, false
}

// SpawnFood appends an unconsumed food item at pos (clamped into bounds) and
// returns a copy of it.
func (r *Registry) SpawnFood(pos components.Position) components.Food {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextFoodID++
	item := components.Food{
		ID:          r.nextFoodID,
		Position:    r.clamp(pos),
		EnergyValue: r.foodEnergy,
	}
	r.food = append(r.food, item)
	return item
}

// FindNearestFood returns the nearest unconsumed food within radius of
// center. Ties keep the item spawned first.
func (r *Registry) FindNearestFood(center components.Position, radius float64) (components.Food, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	best := -1
	bestDist := radius
	for i := range r.food {
		if r.food[i].Consumed {
			continue
		}
		d := r.food[i].Position.Distance(center)
		if d < bestDist || (best < 0 && d == bestDist) {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return components.Food{}, false
	}
	return r.food[best], true
}

// ConsumeFood marks item consumed and removes it. Exactly one caller wins for
// a given item; everyone else, and anyone passing an unknown item, gets false.
func (r *Registry) ConsumeFood(item components.Food) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.food {
		if r.food[i].ID != item.ID {
			continue
		}
		if r.food[i].Consumed {
			return false
		}
		r.food[i].Consumed = true
		r.food = append(r.food[:i], r.food[i+1:]...)
		return true
	}
	return false
}

// AllFood returns a copy of the live food items in spawn order.
func (r *Registry) AllFood() []components.Food {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]components.Food, len(r.food))
	copy(out, r.food)
	return out
}

// FoodCount returns the number of live food items.
func (r *Registry) FoodCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.food)
}

// Clear removes every agent record and food item.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Collect first: no structural changes while the query is open
	toRemove := make([]ecs.Entity, 0, len(r.index))
	query := r.agentFilter.Query()
	for query.Next() {
		toRemove = append(toRemove, query.Entity())
	}
	for _, e := range toRemove {
		r.world.RemoveEntity(e)
	}

	r.grid.Clear()
	clear(r.index)
	r.kindCounts = [2]int{}
	r.food = r.food[:0]
}

// Snapshot copies agents, food and per-kind counts under one lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Agents:    make([]components.AgentRecord, 0, len(r.index)),
		Food:      make([]components.Food, len(r.food)),
		Prey:      r.kindCounts[components.KindPrey],
		Predators: r.kindCounts[components.KindPredator],
	}
	query := r.agentFilter.Query()
	for query.Next() {
		ident, pos, energy, _ := query.Get()
		snap.Agents = append(snap.Agents, components.AgentRecord{ID: ident.ID, Kind: ident.Kind, Position: *pos, Energy: energy.Value})
	}
	copy(snap.Food, r.food)
	return snap
}
