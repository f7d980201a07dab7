package store

import (
	"sort"

	"travelers.ai/internal/sim/terrain/grid"
)

// Coords returns the live coordinates sorted by x then y.
func (s *ChunkStore) Coords() []grid.ChunkCoord {
	keys := make([]grid.ChunkCoord, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	return keys
}

func (s *ChunkStore) Get(c grid.ChunkCoord) (*Chunk, bool) {
	ch, ok := s.Chunks[c]
	return ch, ok
}

func (s *ChunkStore) Len() int { return len(s.Chunks) }

func (s *ChunkStore) DirtyCount() int {
	n := 0
	for _, ch := range s.Chunks {
		if ch.Dirty {
			n++
		}
	}
	return n
}

// EnumerateChunks returns copies of every live chunk in coordinate order.
// Cell slices are shared with the store.
func (s *ChunkStore) EnumerateChunks() []Chunk {
	keys := s.Coords()
	out := make([]Chunk, 0, len(keys))
	for _, k := range keys {
		ch := s.Chunks[k]
		out = append(out, Chunk{Coord: ch.Coord, Interior: ch.Interior, Ring: ch.Ring, Dirty: ch.Dirty})
	}
	return out
}

// SpawnChunk records a freshly generated chunk. A coordinate that is already
// live is left untouched.
func (s *ChunkStore) SpawnChunk(c grid.ChunkCoord, interior grid.Grid) {
	if _, ok := s.Chunks[c]; ok {
		return
	}
	s.Chunks[c] = &Chunk{
		Coord:    c,
		Interior: interior,
		Ring:     grid.NewRing(interior.Side),
		Dirty:    true,
	}
}

// AttachStitchedTiles replaces the chunk's ring. The chunk stays dirty until
// every ring cell is resolved.
func (s *ChunkStore) AttachStitchedTiles(c grid.ChunkCoord, ring grid.Ring) {
	ch, ok := s.Chunks[c]
	if !ok {
		return
	}
	ch.Ring = ring
	ch.Dirty = !ring.Complete()
}

func (s *ChunkStore) DespawnChunk(c grid.ChunkCoord) {
	delete(s.Chunks, c)
}
