// Package towergrid implements the tower (uniform grid) AOI backend: a
// flat rows x cols array of buckets, one per cell of side length R.
package towergrid

import (
	"math"

	"github.com/orbitgrid/aoi/internal/spatial/unit"
)

// handle records which cell a unit currently occupies.
type handle struct {
	row, col int
}

// Backend is the tower AOI variant.
type Backend struct {
	width, height float64
	cellSize      float64
	rows, cols    int
	towers        [][]map[int]*unit.Unit
}

// New returns an empty tower backend covering [0, width] x [0, height],
// with cells of side length cellSize (the index's uniform visibility
// radius R).
func New(width, height, cellSize float64) *Backend {
	rows := int(math.Ceil(height / cellSize))
	if rows < 1 {
		rows = 1
	}
	cols := int(math.Ceil(width / cellSize))
	if cols < 1 {
		cols = 1
	}
	towers := make([][]map[int]*unit.Unit, rows)
	for r := range towers {
		towers[r] = make([]map[int]*unit.Unit, cols)
		for c := range towers[r] {
			towers[r][c] = make(map[int]*unit.Unit)
		}
	}
	return &Backend{width: width, height: height, cellSize: cellSize, rows: rows, cols: cols, towers: towers}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cellFor computes the clamped (row, col) for a position.
func (b *Backend) cellFor(x, y float64) (row, col int) {
	row = clampInt(int(math.Floor(y/b.cellSize)), 0, b.rows-1)
	col = clampInt(int(math.Floor(x/b.cellSize)), 0, b.cols-1)
	return
}

// AddUnit inserts u into its current cell's bucket.
func (b *Backend) AddUnit(u *unit.Unit) {
	row, col := b.cellFor(u.X, u.Y)
	b.towers[row][col][u.ID] = u
	u.Handle = &handle{row: row, col: col}
}

// UpdateUnit moves u to its new position, relocating between cell buckets
// if the cell changed.
func (b *Backend) UpdateUnit(u *unit.Unit, x, y float64) {
	h := u.Handle.(*handle)
	u.X, u.Y = x, y
	row, col := b.cellFor(x, y)
	if row == h.row && col == h.col {
		return
	}
	delete(b.towers[h.row][h.col], u.ID)
	b.towers[row][col][u.ID] = u
	h.row, h.col = row, col
}

// RemoveUnit removes u from its current cell's bucket.
func (b *Backend) RemoveUnit(u *unit.Unit) {
	h := u.Handle.(*handle)
	delete(b.towers[h.row][h.col], u.ID)
	u.Handle = nil
}

// FindNearbyUnit returns every unit (excluding u itself) whose Chebyshev
// distance to u is at most rng, scanning a scaled window of cells around
// u's current cell.
func (b *Backend) FindNearbyUnit(u *unit.Unit, rng float64) map[int]*unit.Unit {
	h := u.Handle.(*handle)
	span := int(math.Ceil(rng / b.cellSize))

	startRow := clampInt(h.row-span, 0, b.rows-1)
	endRow := clampInt(h.row+span, 0, b.rows-1)
	startCol := clampInt(h.col-span, 0, b.cols-1)
	endCol := clampInt(h.col+span, 0, b.cols-1)

	res := make(map[int]*unit.Unit)
	for r := startRow; r <= endRow; r++ {
		for c := startCol; c <= endCol; c++ {
			for _, other := range b.towers[r][c] {
				if math.Abs(u.X-other.X) <= rng && math.Abs(u.Y-other.Y) <= rng {
					res[other.ID] = other
				}
			}
		}
	}
	delete(res, u.ID)
	return res
}
