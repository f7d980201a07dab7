package stitch

import (
	"math/rand"

	"travelers.ai/internal/sim/mathx"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
)

// stitchSalt separates the perimeter stream from the interior hash.
const stitchSalt = 0x5717c4

// Offset is a chunk lattice step relative to the chunk being stitched.
type Offset struct{ DX, DY int }

// View is the read-only state of a chunk as seen by the stitcher.
type View struct {
	Interior grid.Grid
	Ring     grid.Ring
}

type Input struct {
	// IX, IY locate the chunk on the chunk lattice and seed the perimeter stream.
	IX, IY    int64
	Seed      int64
	Schematic *schematic.Schematic

	Self View
	// Neighbors holds the chunks at offsets in [-1,1]², diagonals included.
	// Absent chunks are simply missing from the map.
	Neighbors map[Offset]View
}

type Output struct {
	Ring grid.Ring
	// Complete is true once every ring cell is resolved; the chunk is then no
	// longer dirty.
	Complete bool

	Adopted        int
	Collapsed      int
	Contradictions int
	// Waiting counts ring cells still blocked on an absent neighbor.
	Waiting int
}

// Stitch resolves the perimeter ring of one chunk against its neighbors. Cells
// whose governing neighbor is absent are left unresolved for a later pass.
func Stitch(in Input) Output {
	l := in.Self.Interior.Side
	ring := in.Self.Ring.Clone()
	if ring.Len() != 4*(l+1) {
		ring = grid.NewRing(l)
	}
	st := &stitcher{in: in, l: l, pitch: l + 1, ring: ring}
	var out Output

	// Seam cells are shared; anything a neighbor already resolved is final.
	for i := 0; i < ring.Len(); i++ {
		if ring.At(i).Set {
			continue
		}
		x, y := ring.Pos(i)
		if id, ok := st.foreignRing(x, y); ok {
			ring.Set(i, id)
			out.Adopted++
		}
	}

	n := ring.Len()
	active := make([]bool, n)
	domains := make([][]schematic.TileID, n)
	full := in.Schematic.IDs()
	for i := 0; i < n; i++ {
		if ring.At(i).Set {
			continue
		}
		if !st.present(ring.Governing(i)) {
			out.Waiting++
			continue
		}
		active[i] = true
		domains[i] = append([]schematic.TileID(nil), full...)
	}

	rng := rand.New(rand.NewSource(int64(mathx.Hash2(in.Seed^stitchSalt, in.IX, in.IY))))
	for {
		for i := 0; i < n; i++ {
			if active[i] && !ring.At(i).Set && len(domains[i]) > 0 {
				domains[i] = st.constrain(i, domains[i])
			}
		}
		best, bestLen := -1, 0
		for i := 0; i < n; i++ {
			if !active[i] || ring.At(i).Set || len(domains[i]) == 0 {
				continue
			}
			if best < 0 || len(domains[i]) < bestLen {
				best, bestLen = i, len(domains[i])
			}
		}
		if best < 0 {
			break
		}
		ring.Set(best, domains[best][rng.Intn(bestLen)])
		domains[best] = nil
		out.Collapsed++
	}

	fallback := in.Schematic.FallbackID()
	for i := 0; i < n; i++ {
		if active[i] && !ring.At(i).Set {
			ring.Set(i, fallback)
			out.Contradictions++
		}
	}

	out.Ring = ring
	out.Complete = ring.Complete()
	return out
}

type stitcher struct {
	in    Input
	l     int
	pitch int
	ring  grid.Ring
}

func (s *stitcher) present(d schematic.Direction) bool {
	dx, dy := d.Delta()
	_, ok := s.in.Neighbors[Offset{dx, dy}]
	return ok
}

// constrain narrows dom by every resolved 4-neighbor of ring cell i.
func (s *stitcher) constrain(i int, dom []schematic.TileID) []schematic.TileID {
	x, y := s.ring.Pos(i)
	for _, d := range schematic.Directions {
		dx, dy := d.Delta()
		id, ok := s.tileAt(x+dx, y+dy)
		if !ok {
			continue
		}
		dom = schematic.Intersect(dom, s.in.Schematic.Allowed(id, d.Opposite()))
	}
	return dom
}

// tileAt resolves a position in the stitched chunk's local frame, which may
// fall in the chunk itself or any of its eight neighbors.
func (s *stitcher) tileAt(x, y int) (schematic.TileID, bool) {
	if s.in.Self.Interior.InBounds(x, y) {
		c := s.in.Self.Interior.At(x, y)
		return c.ID, c.Set
	}
	if i, ok := s.ring.IndexAt(x, y); ok {
		if c := s.ring.At(i); c.Set {
			return c.ID, true
		}
		return s.foreignRing(x, y)
	}
	cx := int(mathx.FloorDiv(int64(x), int64(s.pitch)))
	cy := int(mathx.FloorDiv(int64(y), int64(s.pitch)))
	lx, ly := x-cx*s.pitch, y-cy*s.pitch
	if lx < s.l && ly < s.l {
		v, ok := s.in.Neighbors[Offset{cx, cy}]
		if !ok {
			return 0, false
		}
		c := v.Interior.At(lx, ly)
		return c.ID, c.Set
	}
	return s.foreignRing(x, y)
}

// around lists the neighbor offsets in a fixed order so lookups do not depend
// on map iteration.
var around = [8]Offset{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}

// foreignRing looks up a seam position in the rings of the neighbors sharing it.
func (s *stitcher) foreignRing(x, y int) (schematic.TileID, bool) {
	for _, off := range around {
		v, ok := s.in.Neighbors[off]
		if !ok {
			continue
		}
		i, ok := v.Ring.IndexAt(x-off.DX*s.pitch, y-off.DY*s.pitch)
		if !ok {
			continue
		}
		if c := v.Ring.At(i); c.Set {
			return c.ID, true
		}
	}
	return 0, false
}
