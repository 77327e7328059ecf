// Package systems provides the per-tick rules of the foraging simulation.
package systems

import (
	"math"
	"slices"

	"github.com/pthm-cable/forage/components"
)

// PositionFunc resolves a robot slot to its current location.
type PositionFunc func(slot int) components.Location

// SpatialGrid buckets robot slots into square cells over a bounded field.
// With the cell size equal to the receiver radius a radius query touches
// the 3x3 block around the origin cell.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	width    float64
	height   float64
	cells    [][]int // flat grid of slot lists
	cellOf   []int   // slot -> cell index, -1 when absent
}

// NewSpatialGrid creates a spatial grid covering the given field size.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	g := &SpatialGrid{}
	g.Reset(width, height, cellSize)
	return g
}

// Reset empties the grid and reallocates it when the geometry changed.
func (g *SpatialGrid) Reset(width, height, cellSize float64) {
	if cellSize <= 0 {
		cellSize = math.Max(math.Max(width, height), 1)
	}
	if width == g.width && height == g.height && cellSize == g.cellSize && g.cells != nil {
		g.Clear()
		return
	}

	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]int, cols*rows)
	for i := range cells {
		cells[i] = make([]int, 0, 8)
	}

	g.cellSize = cellSize
	g.cols = cols
	g.rows = rows
	g.width = width
	g.height = height
	g.cells = cells
	g.cellOf = g.cellOf[:0]
}

// Clear removes all slots from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.cellOf = g.cellOf[:0]
}

// CellSize returns the edge length of a cell.
func (g *SpatialGrid) CellSize() float64 {
	return g.cellSize
}

// Insert adds a slot at the given position.
func (g *SpatialGrid) Insert(slot int, x, y float64) {
	for len(g.cellOf) <= slot {
		g.cellOf = append(g.cellOf, -1)
	}
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], slot)
	g.cellOf[slot] = idx
}

// Move relocates a slot after its robot moved. It is a no-op when the
// robot stayed in its cell, which keeps the grid exact during a pass.
func (g *SpatialGrid) Move(slot int, x, y float64) {
	if slot >= len(g.cellOf) || g.cellOf[slot] < 0 {
		g.Insert(slot, x, y)
		return
	}
	old := g.cellOf[slot]
	idx := g.cellIndex(x, y)
	if idx == old {
		return
	}

	bucket := g.cells[old]
	if i := slices.Index(bucket, slot); i >= 0 {
		last := len(bucket) - 1
		bucket[i] = bucket[last]
		g.cells[old] = bucket[:last]
	}
	g.cells[idx] = append(g.cells[idx], slot)
	g.cellOf[slot] = idx
}

// QueryRadiusInto appends every slot other than exclude whose position lies
// within radius of (x, y). The appended slots are sorted ascending, so the
// result matches LinearQueryInto. Reuse dst across calls to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []int, x, y, radius float64, exclude int, pos PositionFunc) []int {
	start := len(dst)
	origin := components.Location{X: x, Y: y}

	colMin, rowMin := g.cellCoords(x-radius, y-radius)
	colMax, rowMax := g.cellCoords(x+radius, y+radius)

	for row := rowMin; row <= rowMax; row++ {
		for col := colMin; col <= colMax; col++ {
			for _, slot := range g.cells[row*g.cols+col] {
				if slot == exclude {
					continue
				}
				if origin.Distance(pos(slot)) <= radius {
					dst = append(dst, slot)
				}
			}
		}
	}

	slices.Sort(dst[start:])
	return dst
}

// LinearQueryInto is the O(n) reference scan over slots [0, n).
func LinearQueryInto(dst []int, n int, x, y, radius float64, exclude int, pos PositionFunc) []int {
	origin := components.Location{X: x, Y: y}
	for slot := 0; slot < n; slot++ {
		if slot == exclude {
			continue
		}
		if origin.Distance(pos(slot)) <= radius {
			dst = append(dst, slot)
		}
	}
	return dst
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col, row := g.cellCoords(x, y)
	return row*g.cols + col
}

// cellCoords returns the clamped column and row for a world position.
func (g *SpatialGrid) cellCoords(x, y float64) (col, row int) {
	col = int(math.Floor(x / g.cellSize))
	row = int(math.Floor(y / g.cellSize))

	// Clamp to valid range
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}

	return col, row
}
