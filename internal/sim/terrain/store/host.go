package store

import "travelers.ai/internal/sim/terrain/grid"

// Host pairs a ChunkStore with a movable focus so it can drive a world
// directly. It is not safe for concurrent use; the world loop owns it.
type Host struct {
	*ChunkStore
	focus grid.Vec2
}

func NewHost(s *ChunkStore, focus grid.Vec2) *Host {
	if s == nil {
		s = NewChunkStore()
	}
	return &Host{ChunkStore: s, focus: focus}
}

func (h *Host) FocusPosition() grid.Vec2 { return h.focus }

func (h *Host) SetFocus(pos grid.Vec2) { h.focus = pos }
