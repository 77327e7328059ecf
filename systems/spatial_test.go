package systems

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/pthm-cable/forage/components"
)

func TestSpatialGridMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	const (
		width  = 640.0
		height = 480.0
		n      = 400
	)

	locs := make([]components.Location, n)
	for i := range locs {
		locs[i] = components.RandomLocation(width, height, 5, rng)
	}
	pos := func(slot int) components.Location { return locs[slot] }

	for _, radius := range []float64{10, 30, 75} {
		grid := NewSpatialGrid(width, height, radius)
		for i, l := range locs {
			grid.Insert(i, l.X, l.Y)
		}

		for i, l := range locs {
			got := grid.QueryRadiusInto(nil, l.X, l.Y, radius, i, pos)
			want := LinearQueryInto(nil, n, l.X, l.Y, radius, i, pos)
			if !slices.Equal(got, want) {
				t.Fatalf("radius %v slot %d: grid %v, linear %v", radius, i, got, want)
			}
		}
	}
}

func TestSpatialGridMoveKeepsQueriesExact(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	const (
		width  = 300.0
		height = 300.0
		n      = 120
		radius = 25.0
	)

	locs := make([]components.Location, n)
	grid := NewSpatialGrid(width, height, radius)
	for i := range locs {
		locs[i] = components.RandomLocation(width, height, 5, rng)
		grid.Insert(i, locs[i].X, locs[i].Y)
	}
	pos := func(slot int) components.Location { return locs[slot] }

	for step := 0; step < 50; step++ {
		for i := range locs {
			locs[i].MoveForward(12, 5, width, height, 1, rng)
			grid.Move(i, locs[i].X, locs[i].Y)
		}
		for i, l := range locs {
			got := grid.QueryRadiusInto(nil, l.X, l.Y, radius, i, pos)
			want := LinearQueryInto(nil, n, l.X, l.Y, radius, i, pos)
			if !slices.Equal(got, want) {
				t.Fatalf("step %d slot %d: grid %v, linear %v", step, i, got, want)
			}
		}
	}
}

func TestSpatialGridExcludesSelf(t *testing.T) {
	grid := NewSpatialGrid(100, 100, 10)
	locs := []components.Location{{X: 50, Y: 50}, {X: 52, Y: 50}, {X: 90, Y: 90}}
	for i, l := range locs {
		grid.Insert(i, l.X, l.Y)
	}
	pos := func(slot int) components.Location { return locs[slot] }

	got := grid.QueryRadiusInto(nil, 50, 50, 10, 0, pos)
	if !slices.Equal(got, []int{1}) {
		t.Errorf("query = %v, want [1]", got)
	}
}

func TestSpatialGridResetReusesGeometry(t *testing.T) {
	grid := NewSpatialGrid(100, 100, 10)
	cells := grid.cells
	grid.Insert(0, 5, 5)

	grid.Reset(100, 100, 10)
	if &grid.cells[0] != &cells[0] {
		t.Error("same geometry should reuse the cell slice")
	}
	if len(grid.cells[0]) != 0 {
		t.Error("Reset should clear the grid")
	}

	grid.Reset(200, 100, 20)
	if grid.CellSize() != 20 || grid.cols != 11 {
		t.Errorf("cellSize=%v cols=%d after resize", grid.CellSize(), grid.cols)
	}
}
