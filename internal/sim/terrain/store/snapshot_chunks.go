package store

import (
	"fmt"

	snapv1 "travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
)

// ExportChunks converts live chunk data into snapshot chunks.
func ExportChunks(s *ChunkStore) []snapv1.ChunkV1 {
	return Export(s.EnumerateChunks())
}

// Export converts chunks, as returned by EnumerateChunks, into snapshot
// chunks. Order is preserved.
func Export(chunks []Chunk) []snapv1.ChunkV1 {
	out := make([]snapv1.ChunkV1, 0, len(chunks))
	for _, ch := range chunks {
		interior, interiorSet := splitCells(ch.Interior.Cells)
		ring, ringSet := splitCells(ch.Ring.Cells)
		out = append(out, snapv1.ChunkV1{
			X:           ch.Coord.X,
			Y:           ch.Coord.Y,
			Side:        ch.Interior.Side,
			Interior:    interior,
			InteriorSet: interiorSet,
			Ring:        ring,
			RingSet:     ringSet,
			Dirty:       ch.Dirty,
		})
	}
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks. Every chunk must
// have interior side l.
func ImportChunks(l int, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore()
	for _, ch := range chunks {
		if ch.Side != l {
			return nil, fmt.Errorf("snapshot chunk side mismatch: got %d want %d", ch.Side, l)
		}
		if len(ch.Interior) != l*l || len(ch.InteriorSet) != l*l {
			return nil, fmt.Errorf("snapshot chunk interior length mismatch: got %d/%d want %d", len(ch.Interior), len(ch.InteriorSet), l*l)
		}
		if len(ch.Ring) != 4*l+4 || len(ch.RingSet) != 4*l+4 {
			return nil, fmt.Errorf("snapshot chunk ring length mismatch: got %d/%d want %d", len(ch.Ring), len(ch.RingSet), 4*l+4)
		}
		k := grid.ChunkCoord{X: ch.X, Y: ch.Y}
		if _, dup := store.Chunks[k]; dup {
			return nil, fmt.Errorf("snapshot chunk %v appears twice", k)
		}
		c := &Chunk{
			Coord:    k,
			Interior: grid.Grid{Side: l, Cells: joinCells(ch.Interior, ch.InteriorSet)},
			Ring:     grid.Ring{Side: l, Cells: joinCells(ch.Ring, ch.RingSet)},
			Dirty:    ch.Dirty,
		}
		_ = c.Digest()
		store.Chunks[k] = c
	}
	return store, nil
}

func splitCells(cells []grid.Cell) ([]uint16, []bool) {
	ids := make([]uint16, len(cells))
	set := make([]bool, len(cells))
	for i, c := range cells {
		ids[i] = uint16(c.ID)
		set[i] = c.Set
	}
	return ids, set
}

func joinCells(ids []uint16, set []bool) []grid.Cell {
	cells := make([]grid.Cell, len(ids))
	for i := range ids {
		cells[i] = grid.Cell{ID: schematic.TileID(ids[i]), Set: set[i]}
	}
	return cells
}
