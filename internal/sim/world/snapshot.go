package world

import (
	"errors"
	"fmt"

	"travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/store"
)

// ExportSnapshot captures the host's live chunks and the world counters.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	focus := w.host.FocusPosition()
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:            w.cfg.Seed,
		TickRate:        w.cfg.TickRateHz,
		ChunkTileLength: w.cfg.ChunkTileLength,
		TileSize:        w.cfg.TileSize,
		RenderDistance:  w.cfg.RenderDistance,
		SchematicDigest: w.schem.Digest(),
		FocusX:          focus.X,
		FocusY:          focus.Y,
		Chunks:          store.Export(w.host.EnumerateChunks()),
		Counters: snapshot.CountersV1{
			Spawned:        w.totals.Spawned,
			Despawned:      w.totals.Despawned,
			Stitched:       w.totals.Stitched,
			Contradictions: w.totals.Contradictions,
		},
	}
}

// ImportSnapshot restores the tick counter and totals from snap. The chunks
// themselves belong to the host and are restored with store.ImportChunks.
// The next tick run is the one after the snapshot's.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", snap.Header.Version)
	}
	var errs []error
	if snap.Seed != w.cfg.Seed {
		errs = append(errs, fmt.Errorf("seed mismatch: snapshot %d, world %d", snap.Seed, w.cfg.Seed))
	}
	if snap.ChunkTileLength != w.cfg.ChunkTileLength {
		errs = append(errs, fmt.Errorf("chunk tile length mismatch: snapshot %d, world %d", snap.ChunkTileLength, w.cfg.ChunkTileLength))
	}
	if snap.TileSize != w.cfg.TileSize {
		errs = append(errs, fmt.Errorf("tile size mismatch: snapshot %d, world %d", snap.TileSize, w.cfg.TileSize))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if snap.SchematicDigest != "" && snap.SchematicDigest != w.schem.Digest() {
		w.logger.Printf("snapshot tick %d was taken with a different schematic (%s); chunks will not match fresh generation", snap.Header.Tick, snap.SchematicDigest)
	}
	w.tick.Store(snap.Header.Tick + 1)
	w.totals = totals{
		Spawned:        snap.Counters.Spawned,
		Despawned:      snap.Counters.Despawned,
		Stitched:       snap.Counters.Stitched,
		Contradictions: snap.Counters.Contradictions,
	}
	return nil
}
