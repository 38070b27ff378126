package world

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/pthm-cable/preypred/components"
)

func newTestRegistry() *Registry {
	return New(800, 600, 35)
}

func TestRegisterIsIdempotentPerID(t *testing.T) {
	r := newTestRegistry()
	id := components.NewID()

	r.Register(id, components.KindPrey, components.Pos(10, 10), 85)
	r.Register(id, components.KindPrey, components.Pos(20, 20), 60)

	if got := r.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
	rec, ok := r.Get(id)
	if !ok {
		t.Fatal("record missing after re-register")
	}
	if rec.Position != components.Pos(20, 20) || rec.Energy != 60 {
		t.Errorf("record = %v, want overwrite to (20,20) energy 60", rec)
	}
}

func TestRegisterChangingKindMovesCount(t *testing.T) {
	r := newTestRegistry()
	id := components.NewID()

	r.Register(id, components.KindPrey, components.Pos(10, 10), 85)
	r.Register(id, components.KindPredator, components.Pos(10, 10), 200)

	if r.CountOfKind(components.KindPrey) != 0 || r.CountOfKind(components.KindPredator) != 1 {
		t.Errorf("counts = %d prey, %d predators; want 0, 1",
			r.CountOfKind(components.KindPrey), r.CountOfKind(components.KindPredator))
	}
}

func TestUnregisterAbsentIsNoop(t *testing.T) {
	r := newTestRegistry()
	if r.Unregister(components.NewID()) {
		t.Error("Unregister of unknown id reported removal")
	}
}

func TestUpdatePositionClampsToBounds(t *testing.T) {
	tests := []struct {
		name string
		in   components.Position
		want components.Position
	}{
		{"inside", components.Pos(400, 300), components.Pos(400, 300)},
		{"negative", components.Pos(-50, -1), components.Pos(0, 0)},
		{"beyond", components.Pos(1000, 900), components.Pos(800, 600)},
		{"mixed", components.Pos(-3, 650), components.Pos(0, 600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			id := components.NewID()
			r.Register(id, components.KindPrey, components.Pos(1, 1), 10)

			if !r.UpdatePosition(id, tt.in) {
				t.Fatal("UpdatePosition returned false for a registered id")
			}
			rec, _ := r.Get(id)
			if rec.Position != tt.want {
				t.Errorf("position = %v, want %v", rec.Position, tt.want)
			}
		})
	}
}

func TestUpdatePositionUnknownIDIsIgnored(t *testing.T) {
	r := newTestRegistry()
	if r.UpdatePosition(components.NewID(), components.Pos(5, 5)) {
		t.Error("UpdatePosition of unknown id reported success")
	}
	if r.Len() != 0 {
		t.Error("UpdatePosition of unknown id created a record")
	}
}

func TestUpdateStatePublishesEnergy(t *testing.T) {
	r := newTestRegistry()
	id := components.NewID()
	r.Register(id, components.KindPredator, components.Pos(100, 100), 200)

	r.UpdateState(id, components.Pos(120, 130), 150)

	rec, _ := r.Get(id)
	if rec.Energy != 150 || rec.Position != components.Pos(120, 130) {
		t.Errorf("record = %v, want (120,130) energy 150", rec)
	}
}

func TestNearbyAgentsRadiusFilter(t *testing.T) {
	r := newTestRegistry()
	center := components.Pos(400, 300)
	self := components.NewID()
	r.Register(self, components.KindPrey, center, 50)

	near := components.NewID()
	r.Register(near, components.KindPrey, center.Offset(10, 0), 50)
	r.Register(components.NewID(), components.KindPredator, center.Offset(0, 60), 50)
	r.Register(components.NewID(), components.KindPrey, center.Offset(-100, 0), 50)

	got := r.NearbyAgents(self, center, 50)
	if len(got) != 1 {
		t.Fatalf("NearbyAgents returned %d records, want 1: %v", len(got), got)
	}
	if got[0].ID != near {
		t.Errorf("NearbyAgents returned %v, want the agent at distance 10", got[0])
	}
}

func TestNearbyAgentsRadiusInclusive(t *testing.T) {
	r := newTestRegistry()
	center := components.Pos(200, 200)
	r.Register(components.NewID(), components.KindPrey, center.Offset(30, 40), 50)

	if got := r.NearbyAgents(components.ID{}, center, 50); len(got) != 1 {
		t.Errorf("agent exactly at radius not returned: %v", got)
	}
}

func TestNearbyAgentsHugeRadius(t *testing.T) {
	r := newTestRegistry()
	r.Register(components.NewID(), components.KindPrey, components.Pos(700, 500), 50)
	r.Register(components.NewID(), components.KindPrey, components.Pos(10, 10), 50)

	for _, radius := range []float64{1e18, 1e21, math.MaxFloat64, math.Inf(1)} {
		got := r.NearbyAgents(components.ID{}, components.Pos(400, 300), radius)
		if len(got) != 2 {
			t.Errorf("radius %g: NearbyAgents returned %d records, want 2", radius, len(got))
		}
	}
}

func TestNearbyAgentsTracksMoves(t *testing.T) {
	r := newTestRegistry()
	id := components.NewID()
	r.Register(id, components.KindPrey, components.Pos(10, 10), 50)

	r.UpdatePosition(id, components.Pos(700, 500))

	if got := r.NearbyAgents(components.ID{}, components.Pos(10, 10), 20); len(got) != 0 {
		t.Errorf("stale grid entry at old position: %v", got)
	}
	if got := r.NearbyAgents(components.ID{}, components.Pos(700, 500), 20); len(got) != 1 {
		t.Errorf("agent not found at new position: %v", got)
	}
}

func TestNearbyAgentsReturnsCopies(t *testing.T) {
	r := newTestRegistry()
	id := components.NewID()
	r.Register(id, components.KindPrey, components.Pos(50, 50), 50)

	got := r.NearbyAgents(components.ID{}, components.Pos(50, 50), 10)
	got[0].Energy = 999
	got[0].Position = components.Pos(0, 0)

	rec, _ := r.Get(id)
	if rec.Energy != 50 || rec.Position != components.Pos(50, 50) {
		t.Errorf("mutating a snapshot changed the registry: %v", rec)
	}
}

func TestAllOfKindAndCount(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 5; i++ {
		r.Register(components.NewID(), components.KindPrey, components.Pos(float64(i*10), 0), 50)
	}
	for i := 0; i < 3; i++ {
		r.Register(components.NewID(), components.KindPredator, components.Pos(0, float64(i*10)), 200)
	}

	if got := len(r.AllOfKind(components.KindPrey)); got != 5 {
		t.Errorf("AllOfKind(prey) = %d, want 5", got)
	}
	for _, rec := range r.AllOfKind(components.KindPredator) {
		if !rec.IsPredator() {
			t.Errorf("AllOfKind(predator) returned %v", rec)
		}
	}
	if got := r.CountOfKind(components.KindPredator); got != 3 {
		t.Errorf("CountOfKind(predator) = %d, want 3", got)
	}
}

func TestCheckCollision(t *testing.T) {
	r := newTestRegistry()
	prey := components.NewID()
	r.Register(prey, components.KindPrey, components.Pos(100, 100), 50)
	r.Register(components.NewID(), components.KindPredator, components.Pos(105, 100), 200)

	rec, ok := r.CheckCollision(components.KindPrey, components.Pos(108, 100), 10)
	if !ok || rec.ID != prey {
		t.Errorf("CheckCollision(prey) = %v, %v; want the prey", rec, ok)
	}
	if _, ok := r.CheckCollision(components.KindPrey, components.Pos(200, 200), 10); ok {
		t.Error("CheckCollision found a prey far away")
	}
}

func TestFindNearestFood(t *testing.T) {
	r := newTestRegistry()
	center := components.Pos(400, 300)
	r.SpawnFood(center.Offset(40, 0))
	nearest := r.SpawnFood(center.Offset(0, 5))
	r.SpawnFood(center.Offset(-12, 0))

	got, ok := r.FindNearestFood(center, 50)
	if !ok {
		t.Fatal("no food found")
	}
	if got.ID != nearest.ID {
		t.Errorf("FindNearestFood = %v, want %v", got, nearest)
	}
	if got.EnergyValue != 35 {
		t.Errorf("food energy = %d, want 35", got.EnergyValue)
	}
}

func TestFindNearestFoodTiesKeepFirst(t *testing.T) {
	r := newTestRegistry()
	center := components.Pos(400, 300)
	first := r.SpawnFood(center.Offset(10, 0))
	r.SpawnFood(center.Offset(-10, 0))

	got, _ := r.FindNearestFood(center, 50)
	if got.ID != first.ID {
		t.Errorf("tie resolved to %v, want first spawned %v", got, first)
	}
}

func TestFindNearestFoodOutOfRange(t *testing.T) {
	r := newTestRegistry()
	r.SpawnFood(components.Pos(10, 10))

	if _, ok := r.FindNearestFood(components.Pos(500, 500), 50); ok {
		t.Error("found food outside radius")
	}
}

func TestConsumeFoodOnce(t *testing.T) {
	r := newTestRegistry()
	item := r.SpawnFood(components.Pos(10, 10))

	if !r.ConsumeFood(item) {
		t.Fatal("first ConsumeFood returned false")
	}
	if r.ConsumeFood(item) {
		t.Error("second ConsumeFood returned true")
	}
	if r.FoodCount() != 0 {
		t.Errorf("FoodCount = %d, want 0", r.FoodCount())
	}
	if _, ok := r.FindNearestFood(components.Pos(10, 10), 50); ok {
		t.Error("consumed food still findable")
	}
}

func TestConcurrentConsumeExactlyOneWins(t *testing.T) {
	r := newTestRegistry()
	item := r.SpawnFood(components.Pos(300, 300))

	const n = 32
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.ConsumeFood(item)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("%d callers consumed the same food, want exactly 1", wins)
	}
}

func TestConcurrentUnregisterSamePrey(t *testing.T) {
	r := newTestRegistry()
	prey := components.NewID()
	r.Register(prey, components.KindPrey, components.Pos(50, 50), 50)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	removed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Unregister(prey) {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if removed != 1 {
		t.Errorf("%d unregister calls reported removal, want 1", removed)
	}
	if r.IsRegistered(prey) {
		t.Error("prey still registered")
	}
}

func TestConcurrentUpdatesStayInBounds(t *testing.T) {
	r := newTestRegistry()
	ids := make([]components.ID, 20)
	for i := range ids {
		ids[i] = components.NewID()
		r.Register(ids[i], components.KindPrey, components.Pos(400, 300), 50)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(id components.ID, seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for j := 0; j < 200; j++ {
				p := components.Pos(rng.Float64()*1200-200, rng.Float64()*1000-200)
				r.UpdatePosition(id, p)
				r.NearbyAgents(id, p, 100)
			}
		}(id, int64(i))
	}
	wg.Wait()

	for _, rec := range r.AllAgents() {
		p := rec.Position
		if p.X < 0 || p.X > 800 || p.Y < 0 || p.Y > 600 {
			t.Errorf("agent %v out of bounds", rec)
		}
	}
}

func TestIsRegisteredMatchesAllAgents(t *testing.T) {
	r := newTestRegistry()
	var ids []components.ID
	for i := 0; i < 10; i++ {
		id := components.NewID()
		ids = append(ids, id)
		r.Register(id, components.Kind(i%2), components.Pos(float64(i*50), 100), 50)
	}
	for _, id := range ids[:4] {
		r.Unregister(id)
	}

	all := r.AllAgents()
	for _, id := range ids {
		_, listed := all[id]
		if listed != r.IsRegistered(id) {
			t.Errorf("id %v: listed=%v registered=%v", id, listed, r.IsRegistered(id))
		}
	}
	if len(all) != 6 {
		t.Errorf("AllAgents has %d entries, want 6", len(all))
	}
}

func TestClear(t *testing.T) {
	r := newTestRegistry()
	id := components.NewID()
	r.Register(id, components.KindPrey, components.Pos(1, 1), 50)
	r.Register(components.NewID(), components.KindPredator, components.Pos(2, 2), 200)
	r.SpawnFood(components.Pos(3, 3))

	r.Clear()

	if r.Len() != 0 || r.FoodCount() != 0 {
		t.Errorf("after Clear: %d agents, %d food", r.Len(), r.FoodCount())
	}
	if r.IsRegistered(id) {
		t.Error("id still registered after Clear")
	}
	if got := r.NearbyAgents(components.ID{}, components.Pos(1, 1), 50); len(got) != 0 {
		t.Errorf("grid not cleared: %v", got)
	}

	// Registry stays usable
	r.Register(id, components.KindPrey, components.Pos(5, 5), 50)
	if r.CountOfKind(components.KindPrey) != 1 {
		t.Error("register after Clear failed")
	}
}

func TestSnapshotCounts(t *testing.T) {
	r := newTestRegistry()
	r.Register(components.NewID(), components.KindPrey, components.Pos(1, 1), 50)
	r.Register(components.NewID(), components.KindPrey, components.Pos(2, 1), 50)
	r.Register(components.NewID(), components.KindPredator, components.Pos(3, 1), 200)
	r.SpawnFood(components.Pos(4, 4))

	snap := r.Snapshot()
	if snap.Prey != 2 || snap.Predators != 1 || len(snap.Agents) != 3 || len(snap.Food) != 1 {
		t.Errorf("snapshot = %d prey, %d predators, %d agents, %d food",
			snap.Prey, snap.Predators, len(snap.Agents), len(snap.Food))
	}
}
