package world

import (
	"context"
	"time"

	"travelers.ai/internal/sim/terrain/grid"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case pos := <-w.focus:
			w.applyFocus(pos)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.Tick()
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// SetFocus queues a focus move for the loop goroutine. It reports false when
// the queue is full; the host must implement FocusSetter for it to matter.
func (w *World) SetFocus(pos grid.Vec2) bool {
	select {
	case w.focus <- pos:
		return true
	default:
		return false
	}
}

func (w *World) applyFocus(pos grid.Vec2) {
	fs, ok := w.host.(FocusSetter)
	if !ok {
		w.logger.Printf("focus %v ignored: host cannot move focus", pos)
		return
	}
	fs.SetFocus(pos)
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}
