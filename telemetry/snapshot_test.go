package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/preypred/components"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	preyID := components.NewID()
	snapshot := &Snapshot{
		Version:     SnapshotVersion,
		RNGSeed:     42,
		WorldWidth:  800,
		WorldHeight: 600,
		Tick:        1000,
		Agents: []components.AgentRecord{
			{ID: preyID, Kind: components.KindPrey, Position: components.Pos(150, 250), Energy: 85},
			{ID: components.NewID(), Kind: components.KindPredator, Position: components.Pos(400, 300), Energy: 210},
		},
		Food: []components.Food{
			{ID: 7, Position: components.Pos(10, 20), EnergyValue: 35},
		},
		Lifetimes: map[components.ID]LifetimeStats{
			preyID: {Kind: components.KindPrey, BirthTick: 100, Children: 2, TotalForaged: 70},
		},
		History: []PopulationPoint{{Tick: 999, Prey: 1, Predators: 1, Food: 1}},
		Bookmark: &Bookmark{
			Type:        BookmarkHuntBreakthrough,
			Tick:        1000,
			Description: "Test bookmark",
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.Version != snapshot.Version || loaded.RNGSeed != snapshot.RNGSeed || loaded.Tick != snapshot.Tick {
		t.Errorf("header mismatch: got %d/%d/%d", loaded.Version, loaded.RNGSeed, loaded.Tick)
	}
	if len(loaded.Agents) != 2 {
		t.Fatalf("Agents count mismatch: got %d, want 2", len(loaded.Agents))
	}
	if loaded.Agents[0] != snapshot.Agents[0] {
		t.Errorf("agent mismatch: got %v, want %v", loaded.Agents[0], snapshot.Agents[0])
	}
	if loaded.Agents[1].Kind != components.KindPredator {
		t.Errorf("kind mismatch: got %v", loaded.Agents[1].Kind)
	}
	if lt, ok := loaded.Lifetimes[preyID]; !ok || lt.Children != 2 {
		t.Errorf("lifetime mismatch: %+v", loaded.Lifetimes)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != snapshot.Bookmark.Type {
		t.Errorf("Bookmark not loaded: %+v", loaded.Bookmark)
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Tick:    5000,
		Bookmark: &Bookmark{
			Type: BookmarkPreyCrash,
			Tick: 5000,
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	expected := filepath.Join(tmpDir, "snapshot_5000_prey_crash.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Tick: 3000}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	expected = filepath.Join(tmpDir, "snapshot_3000.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}
}
