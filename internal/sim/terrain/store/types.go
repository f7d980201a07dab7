package store

import (
	"crypto/sha256"
	"encoding/binary"

	"travelers.ai/internal/sim/terrain/grid"
)

type Chunk struct {
	Coord    grid.ChunkCoord
	Interior grid.Grid
	Ring     grid.Ring
	// Dirty stays set from spawn until the ring is fully resolved.
	Dirty bool

	hash   [32]byte
	hashed bool
}

// Digest hashes the interior cells. Unset cells hash as 0xFFFF followed by a
// zero set-byte so they never collide with a real id.
func (c *Chunk) Digest() [32]byte {
	if !c.hashed {
		h := sha256.New()
		var tmp [3]byte
		for _, cell := range c.Interior.Cells {
			binary.LittleEndian.PutUint16(tmp[:2], uint16(cell.ID))
			tmp[2] = 0
			if cell.Set {
				tmp[2] = 1
			} else {
				tmp[0], tmp[1] = 0xFF, 0xFF
			}
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.hashed = true
	}
	return c.hash
}

type ChunkStore struct {
	Chunks map[grid.ChunkCoord]*Chunk
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		Chunks: map[grid.ChunkCoord]*Chunk{},
	}
}
