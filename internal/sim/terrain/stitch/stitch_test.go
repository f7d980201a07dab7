package stitch

import (
	"slices"
	"testing"

	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
)

const (
	grass schematic.TileID = 0
	water schematic.TileID = 1
	sand  schematic.TileID = 2
)

func uniform(id schematic.TileID, allow ...schematic.TileID) schematic.TileType {
	return schematic.TileType{ID: id, Allow: [4][]schematic.TileID{allow, allow, allow, allow}}
}

func coast(t *testing.T) *schematic.Schematic {
	t.Helper()
	s, err := schematic.New(sand,
		uniform(grass, grass, sand),
		uniform(water, water, sand),
		uniform(sand, grass, water, sand),
	)
	if err != nil {
		t.Fatalf("schematic.New: %v", err)
	}
	return s
}

func filled(l int, id schematic.TileID) grid.Grid {
	g := grid.NewGrid(l)
	for x := 0; x < l; x++ {
		for y := 0; y < l; y++ {
			g.Set(x, y, id)
		}
	}
	return g
}

// checkRing verifies every resolved ring cell against its resolved neighbors.
func checkRing(t *testing.T, in Input, out Output) {
	t.Helper()
	st := &stitcher{in: in, l: in.Self.Interior.Side, pitch: in.Self.Interior.Side + 1, ring: out.Ring}
	for i := 0; i < out.Ring.Len(); i++ {
		c := out.Ring.At(i)
		if !c.Set {
			continue
		}
		x, y := out.Ring.Pos(i)
		for _, d := range schematic.Directions {
			dx, dy := d.Delta()
			nb, ok := st.tileAt(x+dx, y+dy)
			if !ok {
				continue
			}
			if !in.Schematic.Permits(nb, d.Opposite(), c.ID) {
				t.Fatalf("ring cell %d at (%d,%d)=%d conflicts with %d to its %s", i, x, y, c.ID, nb, d)
			}
		}
	}
}

func TestStitch_RepairsSeamBetweenMismatchedChunks(t *testing.T) {
	s := coast(t)
	const l = 4
	if s.Permits(grass, schematic.East, water) {
		t.Fatalf("ruleset should forbid grass next to water")
	}
	in := Input{
		Seed:      9,
		Schematic: s,
		Self:      View{Interior: filled(l, grass)},
		Neighbors: map[Offset]View{{1, 0}: {Interior: filled(l, water)}},
	}
	out := Stitch(in)
	ring := out.Ring
	for r := 1; r <= l; r++ {
		c := ring.At(ring.Index(schematic.East, r))
		if !c.Set || c.ID != sand {
			t.Fatalf("east rank %d: got %+v want sand", r, c)
		}
	}
	if !ring.At(ring.Index(schematic.South, 0)).Set {
		t.Fatalf("south-east corner should be stitched once the east neighbor exists")
	}
	if ring.At(ring.Index(schematic.East, 0)).Set {
		t.Fatalf("north-east corner waits for the north neighbor")
	}
	if out.Complete {
		t.Fatalf("ring with missing neighbors reported complete")
	}
	if out.Waiting != 4*l+4-(l+1) {
		t.Fatalf("waiting: got %d want %d", out.Waiting, 4*l+4-(l+1))
	}
	if out.Contradictions != 0 {
		t.Fatalf("unexpected contradictions: %d", out.Contradictions)
	}
	checkRing(t, in, out)
}

func TestStitch_NeighborAdoptsSharedSeam(t *testing.T) {
	s := coast(t)
	const l = 4
	a := View{Interior: filled(l, grass)}
	b := View{Interior: filled(l, water)}

	outA := Stitch(Input{Seed: 1, Schematic: s, Self: a, Neighbors: map[Offset]View{{1, 0}: b}})
	a.Ring = outA.Ring

	inB := Input{IX: 1, Seed: 1, Schematic: s, Self: b, Neighbors: map[Offset]View{{-1, 0}: a}}
	outB := Stitch(inB)
	if outB.Adopted < l {
		t.Fatalf("expected at least %d adopted cells, got %d", l, outB.Adopted)
	}
	for i := 0; i < outB.Ring.Len(); i++ {
		x, y := outB.Ring.Pos(i)
		j, ok := a.Ring.IndexAt(x+l+1, y)
		if !ok || !a.Ring.At(j).Set {
			continue
		}
		if outB.Ring.At(i) != a.Ring.At(j) {
			t.Fatalf("shared cell (%d,%d) differs: %+v vs %+v", x, y, outB.Ring.At(i), a.Ring.At(j))
		}
	}
	checkRing(t, inB, outB)
}

func TestStitch_CompleteWithAllNeighbors(t *testing.T) {
	s := coast(t)
	const l = 3
	nbs := map[Offset]View{}
	for _, off := range around {
		id := grass
		if off.DX > 0 {
			id = water
		}
		nbs[off] = View{Interior: filled(l, id)}
	}
	in := Input{IX: 5, IY: -2, Seed: 4, Schematic: s, Self: View{Interior: filled(l, grass)}, Neighbors: nbs}
	out := Stitch(in)
	if !out.Complete || out.Waiting != 0 {
		t.Fatalf("expected complete ring, waiting=%d", out.Waiting)
	}
	if out.Collapsed+out.Contradictions+out.Adopted != 4*l+4 {
		t.Fatalf("counters do not cover the ring: %+v", out)
	}
	checkRing(t, in, out)

	again := Stitch(in)
	if !slices.Equal(out.Ring.Cells, again.Ring.Cells) {
		t.Fatalf("stitching is not deterministic")
	}
}

func TestStitch_NoNeighborsLeavesRingEmpty(t *testing.T) {
	s := coast(t)
	out := Stitch(Input{Schematic: s, Self: View{Interior: filled(4, grass)}})
	if out.Ring.Resolved() != 0 || out.Complete {
		t.Fatalf("ring resolved without neighbors: %d", out.Ring.Resolved())
	}
	if out.Waiting != 20 {
		t.Fatalf("waiting: got %d want 20", out.Waiting)
	}
}

func TestStitch_ContradictionsUseFallback(t *testing.T) {
	s, err := schematic.New(1, uniform(0, 0), uniform(1, 1))
	if err != nil {
		t.Fatalf("schematic.New: %v", err)
	}
	const l = 4
	out := Stitch(Input{
		Schematic: s,
		Self:      View{Interior: filled(l, 0)},
		Neighbors: map[Offset]View{{1, 0}: {Interior: filled(l, 1)}},
	})
	if out.Contradictions != l {
		t.Fatalf("contradictions: got %d want %d", out.Contradictions, l)
	}
	for r := 1; r <= l; r++ {
		c := out.Ring.At(out.Ring.Index(schematic.East, r))
		if !c.Set || c.ID != 1 {
			t.Fatalf("east rank %d: got %+v want fallback", r, c)
		}
	}
}

func TestStitch_KeepsPreviouslyResolvedCells(t *testing.T) {
	s := coast(t)
	const l = 4
	self := View{Interior: filled(l, grass), Ring: grid.NewRing(l)}
	nw := self.Ring.Index(schematic.North, 0)
	self.Ring.Set(nw, grass)
	out := Stitch(Input{Schematic: s, Self: self, Neighbors: map[Offset]View{{0, 1}: {Interior: filled(l, grass)}}})
	if c := out.Ring.At(nw); !c.Set || c.ID != grass {
		t.Fatalf("previously resolved corner changed: %+v", c)
	}
	if self.Ring.Resolved() != 1 {
		t.Fatalf("input ring mutated")
	}
}
