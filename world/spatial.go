package world

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/preypred/components"
)

// DefaultCellSize is the grid resolution used by New. It is about half the
// smallest vision radius so a radius query touches a handful of cells.
const DefaultCellSize = 50.0

// gridCell is the ECS component remembering which grid cell holds an entity,
// so moves and removals don't have to scan the grid.
type gridCell struct {
	Index int
}

// SpatialGrid buckets entities into fixed-size cells over a bounded world.
// It is not safe for concurrent use; the registry lock guards it.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]ecs.Entity
}

// NewSpatialGrid creates a spatial grid covering the given world size.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]ecs.Entity, cols*rows)
	for i := range cells {
		cells[i] = make([]ecs.Entity, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Clear removes all entities from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity at the given position and returns its cell index.
func (g *SpatialGrid) Insert(e ecs.Entity, p components.Position) int {
	idx := g.cellIndex(p.X, p.Y)
	g.cells[idx] = append(g.cells[idx], e)
	return idx
}

// Remove drops an entity from the cell it was inserted into.
func (g *SpatialGrid) Remove(e ecs.Entity, idx int) {
	if idx < 0 || idx >= len(g.cells) {
		return
	}
	cell := g.cells[idx]
	for i, other := range cell {
		if other == e {
			last := len(cell) - 1
			cell[i] = cell[last]
			g.cells[idx] = cell[:last]
			return
		}
	}
}

// Move relocates an entity if its new position falls in a different cell.
// It returns the entity's current cell index.
func (g *SpatialGrid) Move(e ecs.Entity, idx int, p components.Position) int {
	next := g.cellIndex(p.X, p.Y)
	if next == idx {
		return idx
	}
	g.Remove(e, idx)
	g.cells[next] = append(g.cells[next], e)
	return next
}

// QueryRadiusInto appends to dst every entity other than exclude whose
// position lies within radius (inclusive) of center. Reuse dst across calls
// to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []ecs.Entity, center components.Position, radius float64, exclude ecs.Entity, posMap *ecs.Map1[components.Position]) []ecs.Entity {
	if radius < 0 {
		return dst
	}

	minCol, minRow := g.cellCoords(center.X-radius, center.Y-radius)
	maxCol, maxRow := g.cellCoords(center.X+radius, center.Y+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, e := range g.cells[row*g.cols+col] {
				if e == exclude {
					continue
				}
				pos := posMap.Get(e)
				if pos == nil {
					continue
				}
				if pos.Distance(center) <= radius {
					dst = append(dst, e)
				}
			}
		}
	}

	return dst
}

// cellCoords returns the clamped column and row for a world position.
func (g *SpatialGrid) cellCoords(x, y float64) (col, row int) {
	return clampCell(x/g.cellSize, g.cols), clampCell(y/g.cellSize, g.rows)
}

// clampCell clamps in float space so huge or infinite coordinates never
// overflow the int conversion. NaN maps to 0.
func clampCell(f float64, n int) int {
	switch {
	case !(f >= 0):
		return 0
	case f >= float64(n):
		return n - 1
	default:
		return int(f)
	}
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col, row := g.cellCoords(x, y)
	return row*g.cols + col
}
