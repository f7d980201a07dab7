package world

import "travelers.ai/internal/sim/terrain/grid"

// TickReport summarizes one lifecycle tick. It doubles as the tick log record.
type TickReport struct {
	RunID string    `json:"run_id,omitempty"`
	Tick  uint64    `json:"tick"`
	Focus grid.Vec2 `json:"focus"`

	Visible   int               `json:"visible"`
	Spawned   []SpawnRecord     `json:"spawned,omitempty"`
	Stitched  []StitchRecord    `json:"stitched,omitempty"`
	Despawned []grid.ChunkCoord `json:"despawned,omitempty"`
	Failed    []FailureRecord   `json:"failed,omitempty"`

	// Waiting counts dirty chunks skipped because no 4-neighbor is live yet.
	Waiting int `json:"waiting,omitempty"`

	LiveChunks  int     `json:"live_chunks"`
	DirtyChunks int     `json:"dirty_chunks"`
	StepMS      float64 `json:"step_ms"`
}

type SpawnRecord struct {
	Coord          grid.ChunkCoord `json:"coord"`
	Contradictions int             `json:"contradictions,omitempty"`
	Digest         string          `json:"digest"`
}

type StitchRecord struct {
	Coord          grid.ChunkCoord `json:"coord"`
	Complete       bool            `json:"complete"`
	Adopted        int             `json:"adopted,omitempty"`
	Collapsed      int             `json:"collapsed,omitempty"`
	Contradictions int             `json:"contradictions,omitempty"`
	Waiting        int             `json:"waiting,omitempty"`
}

type FailureRecord struct {
	Coord grid.ChunkCoord `json:"coord"`
	Stage string          `json:"stage"` // "generate" or "stitch"
	Error string          `json:"error"`
}

// Contradictions totals the cells resolved with the fallback id this tick.
func (r TickReport) Contradictions() int {
	n := 0
	for _, s := range r.Spawned {
		n += s.Contradictions
	}
	for _, s := range r.Stitched {
		n += s.Contradictions
	}
	return n
}

type TickLogger interface {
	WriteTick(entry TickReport) error
}
