// Package spatial provides cache-efficient spatial data structures for
// broad-phase collision detection and the command queue feeding the tick driver.
//
// All structures use preallocated slices with integer indices (not pointers)
// to minimize GC pressure and maximize cache locality.
package spatial

import (
	"math"
	"sort"
)

// Grid provides O(1) average spatial queries via fixed-size cells.
// Entities are inserted by the index they have in the caller's slice.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type Grid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint32 // cells[row*cols+col] = list of entity indices
	scratch     []uint32   // reusable buffer for query results
}

// NewGrid creates a grid for the given world bounds.
// cellSize should be close to the largest query radius.
// maxEntities is used to preallocate cell capacity.
func NewGrid(worldWidth, worldHeight, cellSize float64, maxEntities int) *Grid {
	if cellSize <= 0 {
		cellSize = 100
	}
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity whose center is at (x, y).
// Positions outside the world are clamped into the border cells.
func (g *Grid) Insert(entityID uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entityID)
}

func (g *Grid) clampCol(col int) int {
	if col < 0 {
		return 0
	}
	if col >= g.cols {
		return g.cols - 1
	}
	return col
}

func (g *Grid) clampRow(row int) int {
	if row < 0 {
		return 0
	}
	if row >= g.rows {
		return g.rows - 1
	}
	return row
}

func (g *Grid) cellOf(v float64) int {
	return int(math.Floor(v * g.invCellSize))
}

// cellIndex computes the cell index for a position, with bounds checking.
func (g *Grid) cellIndex(x, y float64) int {
	return g.clampRow(g.cellOf(y))*g.cols + g.clampCol(g.cellOf(x))
}

// QueryRadius returns all entity IDs whose centers may lie within radius of
// (cx, cy), sorted in descending index order (latest inserted entity first).
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// The caller must still perform the precise narrow-phase test.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := g.clampCol(g.cellOf(cx - radius))
	maxCol := g.clampCol(g.cellOf(cx + radius))
	minRow := g.clampRow(g.cellOf(cy - radius))
	maxRow := g.clampRow(g.cellOf(cy + radius))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	sort.Slice(g.scratch, func(i, j int) bool { return g.scratch[i] > g.scratch[j] })
	return g.scratch
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
