package components

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// Position is an immutable world coordinate. Every operation returns a new
// value so a position handed to the registry can never be mutated behind it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pos is shorthand for constructing a Position.
func Pos(x, y float64) Position {
	return Position{X: x, Y: y}
}

func (p Position) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func fromVec(v r2.Vec) Position {
	return Position{X: v.X, Y: v.Y}
}

// Distance returns the Euclidean distance to other.
func (p Position) Distance(other Position) float64 {
	return r2.Norm(r2.Sub(p.vec(), other.vec()))
}

// Offset returns the position translated by (dx, dy).
func (p Position) Offset(dx, dy float64) Position {
	return fromVec(r2.Add(p.vec(), r2.Vec{X: dx, Y: dy}))
}

// Sub returns the offset vector p - other as (dx, dy).
func (p Position) Sub(other Position) (dx, dy float64) {
	d := r2.Sub(p.vec(), other.vec())
	return d.X, d.Y
}

// MoveToward steps speed units along the direction (dx, dy). The direction is
// normalized first; a zero direction leaves the position unchanged.
func (p Position) MoveToward(dx, dy, speed float64) Position {
	dir := r2.Vec{X: dx, Y: dy}
	if r2.Norm(dir) > 0 {
		dir = r2.Unit(dir)
	}
	return fromVec(r2.Add(p.vec(), r2.Scale(speed, dir)))
}

// RandomStep moves speed units in a uniformly random heading.
func (p Position) RandomStep(rng *rand.Rand, speed float64) Position {
	angle := rng.Float64() * 2 * math.Pi
	return p.Offset(math.Cos(angle)*speed, math.Sin(angle)*speed)
}

// Clamp confines the position to [minX, maxX] x [minY, maxY].
func (p Position) Clamp(minX, minY, maxX, maxY float64) Position {
	return Position{
		X: math.Max(minX, math.Min(maxX, p.X)),
		Y: math.Max(minY, math.Min(maxY, p.Y)),
	}
}

// ClampInset confines the position to the world rectangle shrunk by margin on
// every side.
func (p Position) ClampInset(width, height, margin float64) Position {
	return p.Clamp(margin, margin, width-margin, height-margin)
}

// Centroid returns the mean of the given positions. It returns the zero
// position for an empty slice.
func Centroid(points []Position) Position {
	if len(points) == 0 {
		return Position{}
	}
	var sum r2.Vec
	for _, pt := range points {
		sum = r2.Add(sum, pt.vec())
	}
	return fromVec(r2.Scale(1/float64(len(points)), sum))
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}
