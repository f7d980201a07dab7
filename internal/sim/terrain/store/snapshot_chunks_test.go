package store

import (
	"testing"

	snapv1 "travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/grid"
)

func TestExportAndImportChunksRoundTrip(t *testing.T) {
	s := NewChunkStore()
	c := grid.ChunkCoord{X: 9, Y: -18}
	in := grid.NewGrid(2)
	in.Set(0, 0, 3)
	in.Set(1, 1, 9)
	s.SpawnChunk(c, in)
	ring := grid.NewRing(2)
	ring.Set(4, 7)
	s.AttachStitchedTiles(c, ring)

	exported := ExportChunks(s)
	if len(exported) != 1 {
		t.Fatalf("expected 1 exported chunk, got %d", len(exported))
	}
	if exported[0].Interior[0] != 3 || exported[0].Interior[3] != 9 || exported[0].InteriorSet[1] {
		t.Fatalf("unexpected exported interior: %v %v", exported[0].Interior, exported[0].InteriorSet)
	}
	if !exported[0].Dirty {
		t.Fatalf("partially stitched chunk exported clean")
	}

	imported, err := ImportChunks(2, exported)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	got, ok := imported.Get(c)
	if !ok {
		t.Fatalf("missing imported chunk")
	}
	if got.Interior.At(0, 0).ID != 3 || got.Interior.At(1, 1).ID != 9 || got.Interior.At(0, 1).Set {
		t.Fatalf("unexpected imported interior: %+v", got.Interior.Cells)
	}
	if r := got.Ring.At(4); !r.Set || r.ID != 7 || got.Ring.Resolved() != 1 {
		t.Fatalf("unexpected imported ring: %+v", got.Ring.Cells)
	}
	orig, _ := s.Get(c)
	if got.Digest() != orig.Digest() {
		t.Fatalf("digest changed across round trip")
	}
}

func TestImportChunksRejectsInvalidShape(t *testing.T) {
	_, err := ImportChunks(2, []snapv1.ChunkV1{{
		Side:        3,
		Interior:    make([]uint16, 9),
		InteriorSet: make([]bool, 9),
		Ring:        make([]uint16, 16),
		RingSet:     make([]bool, 16),
	}})
	if err == nil {
		t.Fatalf("expected error for invalid chunk side")
	}
	_, err = ImportChunks(2, []snapv1.ChunkV1{{
		Side:        2,
		Interior:    make([]uint16, 4),
		InteriorSet: make([]bool, 4),
		Ring:        make([]uint16, 11),
		RingSet:     make([]bool, 11),
	}})
	if err == nil {
		t.Fatalf("expected error for short ring")
	}
}
