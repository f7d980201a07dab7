package world

import "time"

// Tick runs one lifecycle pass and returns its report. It must be called from
// a single goroutine; Run does so on every ticker fire.
func (w *World) Tick() TickReport {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	rep := w.runPhases(nowTick)

	chunks := w.host.EnumerateChunks()
	rep.LiveChunks = len(chunks)
	for _, ch := range chunks {
		if ch.Dirty {
			rep.DirtyChunks++
		}
	}

	w.totals.Spawned += uint64(len(rep.Spawned))
	w.totals.Despawned += uint64(len(rep.Despawned))
	w.totals.Stitched += uint64(len(rep.Stitched))
	w.totals.Contradictions += uint64(rep.Contradictions())
	w.totals.Failures += uint64(len(rep.Failed))

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		every := uint64(w.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				w.logger.Printf("tick %d: snapshot sink full, dropping snapshot", nowTick)
			}
		}
	}

	rep.StepMS = float64(time.Since(stepStart).Microseconds()) / 1000.0
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(rep); err != nil {
			w.logger.Printf("tick %d: tick log: %v", nowTick, err)
		}
	}

	nextTick := w.tick.Add(1)
	w.metrics.Store(WorldMetrics{
		Tick:          nextTick,
		LiveChunks:    rep.LiveChunks,
		DirtyChunks:   rep.DirtyChunks,
		VisibleChunks: rep.Visible,
		Waiting:       rep.Waiting,
		Focus:         rep.Focus,
		StepMS:        rep.StepMS,
		Totals: TotalsMetrics{
			Spawned:        w.totals.Spawned,
			Despawned:      w.totals.Despawned,
			Stitched:       w.totals.Stitched,
			Contradictions: w.totals.Contradictions,
			Failures:       w.totals.Failures,
		},
		QueueDepths: QueueDepths{
			Focus: len(w.focus),
			Admin: len(w.admin),
		},
	})
	return rep
}
