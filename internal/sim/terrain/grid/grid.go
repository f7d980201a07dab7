package grid

import "travelers.ai/internal/sim/terrain/schematic"

// Cell is an optional tile id.
type Cell struct {
	ID  schematic.TileID
	Set bool
}

// Or returns the cell's id, or fallback when unset.
func (c Cell) Or(fallback schematic.TileID) schematic.TileID {
	if c.Set {
		return c.ID
	}
	return fallback
}

// Grid is a chunk interior of Side×Side cells stored x-major: the cell at
// (x, y) lives at x*Side+y, so storage order is the solver's scan order.
type Grid struct {
	Side  int
	Cells []Cell
}

func NewGrid(side int) Grid {
	return Grid{Side: side, Cells: make([]Cell, side*side)}
}

func (g Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Side && y < g.Side
}

func (g Grid) Index(x, y int) int { return x*g.Side + y }

// Pos is the inverse of Index.
func (g Grid) Pos(i int) (x, y int) { return i / g.Side, i % g.Side }

// At returns the zero Cell for out-of-bounds positions.
func (g Grid) At(x, y int) Cell {
	if !g.InBounds(x, y) {
		return Cell{}
	}
	return g.Cells[g.Index(x, y)]
}

func (g Grid) Set(x, y int, id schematic.TileID) {
	if !g.InBounds(x, y) {
		return
	}
	g.Cells[g.Index(x, y)] = Cell{ID: id, Set: true}
}

// Unresolved counts unset cells.
func (g Grid) Unresolved() int {
	n := 0
	for _, c := range g.Cells {
		if !c.Set {
			n++
		}
	}
	return n
}

// IDs renders the grid, substituting fallback for unset cells.
func (g Grid) IDs(fallback schematic.TileID) []uint16 {
	out := make([]uint16, len(g.Cells))
	for i, c := range g.Cells {
		out[i] = uint16(c.Or(fallback))
	}
	return out
}

func (g Grid) Clone() Grid {
	cells := make([]Cell, len(g.Cells))
	copy(cells, g.Cells)
	return Grid{Side: g.Side, Cells: cells}
}
