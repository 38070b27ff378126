package components

import (
	"math"
	"math/rand"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		want float64
	}{
		{"same point", Pos(1, 1), Pos(1, 1), 0},
		{"3-4-5", Pos(0, 0), Pos(3, 4), 5},
		{"negative delta", Pos(10, 10), Pos(7, 6), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Distance(tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoveTowardNormalizesDirection(t *testing.T) {
	start := Pos(100, 100)

	got := start.MoveToward(30, 40, 2)
	if math.Abs(got.X-101.2) > 1e-9 || math.Abs(got.Y-101.6) > 1e-9 {
		t.Errorf("MoveToward = %v, want (101.2, 101.6)", got)
	}

	if d := start.Distance(got); math.Abs(d-2) > 1e-9 {
		t.Errorf("step length = %v, want 2", d)
	}
}

func TestMoveTowardZeroDirection(t *testing.T) {
	start := Pos(5, 5)
	if got := start.MoveToward(0, 0, 10); got != start {
		t.Errorf("zero direction moved position to %v", got)
	}
}

func TestMoveTowardDoesNotMutateReceiver(t *testing.T) {
	start := Pos(1, 2)
	_ = start.MoveToward(1, 0, 5)
	if start != Pos(1, 2) {
		t.Errorf("receiver mutated: %v", start)
	}
}

func TestRandomStepLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	start := Pos(50, 50)
	for i := 0; i < 100; i++ {
		next := start.RandomStep(rng, 1.47)
		if d := start.Distance(next); math.Abs(d-1.47) > 1e-9 {
			t.Fatalf("step %d length = %v, want 1.47", i, d)
		}
	}
}

func TestClampInset(t *testing.T) {
	tests := []struct {
		name string
		in   Position
		want Position
	}{
		{"inside", Pos(400, 300), Pos(400, 300)},
		{"left top", Pos(-5, 3), Pos(20, 20)},
		{"right bottom", Pos(900, 700), Pos(780, 580)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.ClampInset(800, 600, 20); got != tt.want {
				t.Errorf("ClampInset(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	got := Centroid([]Position{Pos(0, 0), Pos(10, 0), Pos(5, 15)})
	if math.Abs(got.X-5) > 1e-9 || math.Abs(got.Y-5) > 1e-9 {
		t.Errorf("Centroid = %v, want (5, 5)", got)
	}
	if got := Centroid(nil); got != (Position{}) {
		t.Errorf("Centroid(nil) = %v, want origin", got)
	}
}

func TestKindText(t *testing.T) {
	for _, k := range []Kind{KindPrey, KindPredator} {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", text, err)
		}
		if back != k {
			t.Errorf("kind %v came back as %v", k, back)
		}
	}

	var k Kind
	if err := k.UnmarshalText([]byte("wolf")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
