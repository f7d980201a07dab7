package grid

import "travelers.ai/internal/sim/terrain/schematic"

// Ring is the 4L+4 cell perimeter around an L×L interior. Cells lie on the
// seam lines at local x or y equal to -1 and L, so each seam cell is shared
// with the neighbor across it.
//
// Cells are ordered clockwise by side (N, E, S, W) and rank 0..L. Rank 0 of a
// side is the corner joining it to the previous side:
//
//	N: rank 0 = (-1, L), rank r = (r-1, L)
//	E: rank 0 = (L, L),  rank r = (L, L-r)
//	S: rank 0 = (L, -1), rank r = (L-r, -1)
//	W: rank 0 = (-1,-1), rank r = (-1, r-1)
type Ring struct {
	Side  int
	Cells []Cell
}

func NewRing(side int) Ring {
	return Ring{Side: side, Cells: make([]Cell, 4*(side+1))}
}

func (r Ring) Len() int { return len(r.Cells) }

func (r Ring) Index(side schematic.Direction, rank int) int {
	return int(side)*(r.Side+1) + rank
}

func (r Ring) SideRank(i int) (schematic.Direction, int) {
	return schematic.Direction(i / (r.Side + 1)), i % (r.Side + 1)
}

// Pos returns the local position of ring cell i.
func (r Ring) Pos(i int) (x, y int) {
	l := r.Side
	side, rank := r.SideRank(i)
	switch side {
	case schematic.North:
		if rank == 0 {
			return -1, l
		}
		return rank - 1, l
	case schematic.East:
		return l, l - rank
	case schematic.South:
		if rank == 0 {
			return l, -1
		}
		return l - rank, -1
	default:
		if rank == 0 {
			return -1, -1
		}
		return -1, rank - 1
	}
}

// IndexAt maps a local position back to its ring index.
func (r Ring) IndexAt(x, y int) (int, bool) {
	l := r.Side
	switch {
	case y == l && x >= -1 && x < l:
		return r.Index(schematic.North, x+1), true
	case x == l && y >= 0 && y <= l:
		return r.Index(schematic.East, l-y), true
	case y == -1 && x >= 0 && x <= l:
		return r.Index(schematic.South, l-x), true
	case x == -1 && y >= -1 && y < l:
		return r.Index(schematic.West, y+1), true
	}
	return 0, false
}

// Governing returns the neighbor whose presence makes ring cell i eligible for
// stitching. Corners follow the previous side.
func (r Ring) Governing(i int) schematic.Direction {
	side, rank := r.SideRank(i)
	if rank == 0 {
		return (side + 3) % 4
	}
	return side
}

func (r Ring) At(i int) Cell {
	if i < 0 || i >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[i]
}

func (r Ring) Set(i int, id schematic.TileID) {
	if i < 0 || i >= len(r.Cells) {
		return
	}
	r.Cells[i] = Cell{ID: id, Set: true}
}

// Complete reports whether every ring cell is resolved.
func (r Ring) Complete() bool {
	if len(r.Cells) == 0 {
		return false
	}
	for _, c := range r.Cells {
		if !c.Set {
			return false
		}
	}
	return true
}

func (r Ring) Resolved() int {
	n := 0
	for _, c := range r.Cells {
		if c.Set {
			n++
		}
	}
	return n
}

func (r Ring) IDs(fallback schematic.TileID) []uint16 {
	out := make([]uint16, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = uint16(c.Or(fallback))
	}
	return out
}

func (r Ring) Clone() Ring {
	cells := make([]Cell, len(r.Cells))
	copy(cells, r.Cells)
	return Ring{Side: r.Side, Cells: cells}
}
