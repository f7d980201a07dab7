package world

import "travelers.ai/internal/sim/terrain/grid"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	LiveChunks    int       `json:"live_chunks"`
	DirtyChunks   int       `json:"dirty_chunks"`
	VisibleChunks int       `json:"visible_chunks"`
	Waiting       int       `json:"waiting"`
	Focus         grid.Vec2 `json:"focus"`

	StepMS float64 `json:"step_ms"`

	Totals      TotalsMetrics `json:"totals"`
	QueueDepths QueueDepths   `json:"queue_depths"`
}

// TotalsMetrics are cumulative since the world was created or restored.
type TotalsMetrics struct {
	Spawned        uint64 `json:"spawned"`
	Despawned      uint64 `json:"despawned"`
	Stitched       uint64 `json:"stitched"`
	Contradictions uint64 `json:"contradictions"`
	Failures       uint64 `json:"failures"`
}

type QueueDepths struct {
	Focus int `json:"focus"`
	Admin int `json:"admin"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
