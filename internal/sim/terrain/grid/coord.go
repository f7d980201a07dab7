package grid

import (
	"fmt"

	"travelers.ai/internal/sim/mathx"
	"travelers.ai/internal/sim/terrain/schematic"
)

// Vec2 is a world-space position. +Y points north.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChunkCoord is the origin of a chunk in world units. Two positions share a
// chunk iff they fall in the same half-open [origin, origin+extent) square.
type ChunkCoord struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

func (c ChunkCoord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Mapper converts between world positions and chunk coordinates.
//
// Pitch is the distance in tiles between two chunk origins: the interior side
// length plus the one-tile seam the chunks share.
type Mapper struct {
	Pitch    int
	TileSize int
}

// NewMapper returns the mapper for chunks with an l×l interior.
func NewMapper(l, tileSize int) Mapper {
	return Mapper{Pitch: l + 1, TileSize: tileSize}
}

// Extent is the chunk side length in world units.
func (m Mapper) Extent() int64 { return int64(m.Pitch) * int64(m.TileSize) }

// Index returns the chunk's position on the chunk lattice.
func (m Mapper) Index(c ChunkCoord) (ix, iy int64) {
	e := m.Extent()
	return mathx.FloorDiv(c.X, e), mathx.FloorDiv(c.Y, e)
}

func (m Mapper) Origin(ix, iy int64) ChunkCoord {
	e := m.Extent()
	return ChunkCoord{X: ix * e, Y: iy * e}
}

func (m Mapper) CoordOf(pos Vec2) ChunkCoord {
	e := float64(m.Extent())
	return m.Origin(mathx.FloorDivF(pos.X, e), mathx.FloorDivF(pos.Y, e))
}

// Offset returns the chunk dx, dy lattice steps away from c.
func (m Mapper) Offset(c ChunkCoord, dx, dy int64) ChunkCoord {
	ix, iy := m.Index(c)
	return m.Origin(ix+dx, iy+dy)
}

func (m Mapper) Neighbor(c ChunkCoord, d schematic.Direction) ChunkCoord {
	dx, dy := d.Delta()
	return m.Offset(c, int64(dx), int64(dy))
}

// TileOrigin is the world tile index of the chunk's interior cell (0,0).
func (m Mapper) TileOrigin(c ChunkCoord) (tx, ty int64) {
	ix, iy := m.Index(c)
	return ix * int64(m.Pitch), iy * int64(m.Pitch)
}

// Visible returns the (2r+1)² coordinates of the square centered on the chunk
// containing focus, x outer and y inner. A negative r is treated as 0.
func (m Mapper) Visible(focus Vec2, r int) []ChunkCoord {
	if r < 0 {
		r = 0
	}
	cx, cy := m.Index(m.CoordOf(focus))
	side := 2*r + 1
	out := make([]ChunkCoord, 0, side*side)
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			out = append(out, m.Origin(cx+int64(dx), cy+int64(dy)))
		}
	}
	return out
}
