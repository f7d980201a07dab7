package observer

import (
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/world"
)

// Host decorates a world host so every chunk transition is published to the
// hub after the inner host has applied it.
type Host struct {
	world.Host
	hub *Hub
}

func NewHost(inner world.Host, hub *Hub) *Host {
	return &Host{Host: inner, hub: hub}
}

func (h *Host) SpawnChunk(c grid.ChunkCoord, interior grid.Grid) {
	h.Host.SpawnChunk(c, interior)
	h.hub.chunkSpawned(c, interior)
}

func (h *Host) AttachStitchedTiles(c grid.ChunkCoord, ring grid.Ring) {
	h.Host.AttachStitchedTiles(c, ring)
	h.hub.chunkStitched(c, ring)
}

func (h *Host) DespawnChunk(c grid.ChunkCoord) {
	h.Host.DespawnChunk(c)
	h.hub.chunkDespawned(c)
}

func (h *Host) SetFocus(pos grid.Vec2) {
	if fs, ok := h.Host.(world.FocusSetter); ok {
		fs.SetFocus(pos)
	}
}
