package world

import (
	"encoding/hex"
	"fmt"
	"sort"

	"travelers.ai/internal/sim/terrain/gen"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/stitch"
	"travelers.ai/internal/sim/terrain/store"
)

// runPhases performs one lifecycle pass: visibility, generation, stitching,
// despawn, in that order.
//
// Stitching reads a view built after generation, so chunks spawned earlier in
// this tick are visible to it. Rings attached during the pass are written
// back into the view, so later chunks in coordinate order see them too.
func (w *World) runPhases(nowTick uint64) TickReport {
	focus := w.host.FocusPosition()
	visible := w.mapper.Visible(focus, w.cfg.RenderDistance)
	rep := TickReport{RunID: w.cfg.RunID, Tick: nowTick, Focus: focus, Visible: len(visible)}

	live := make(map[grid.ChunkCoord]struct{})
	for _, ch := range w.host.EnumerateChunks() {
		live[ch.Coord] = struct{}{}
	}
	for _, c := range visible {
		if _, ok := live[c]; ok {
			continue
		}
		rec, err := w.spawn(c)
		if err != nil {
			w.logger.Printf("tick %d: %v", nowTick, err)
			rep.Failed = append(rep.Failed, FailureRecord{Coord: c, Stage: "generate", Error: err.Error()})
			continue
		}
		if rec.Contradictions > 0 {
			w.logger.Printf("tick %d: chunk %v generated with %d contradictions", nowTick, c, rec.Contradictions)
		}
		rep.Spawned = append(rep.Spawned, rec)
	}

	chunks := w.host.EnumerateChunks()
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Coord.X != chunks[j].Coord.X {
			return chunks[i].Coord.X < chunks[j].Coord.X
		}
		return chunks[i].Coord.Y < chunks[j].Coord.Y
	})
	view := make(map[grid.ChunkCoord]stitch.View, len(chunks))
	for _, ch := range chunks {
		view[ch.Coord] = stitch.View{Interior: ch.Interior, Ring: ch.Ring}
	}
	for _, ch := range chunks {
		if !ch.Dirty {
			continue
		}
		in, ok := w.stitchInput(ch, view)
		if !ok {
			rep.Waiting++
			continue
		}
		out, err := w.stitchOne(ch.Coord, in)
		if err != nil {
			w.logger.Printf("tick %d: %v", nowTick, err)
			rep.Failed = append(rep.Failed, FailureRecord{Coord: ch.Coord, Stage: "stitch", Error: err.Error()})
			continue
		}
		view[ch.Coord] = stitch.View{Interior: ch.Interior, Ring: out.Ring}
		if out.Contradictions > 0 {
			w.logger.Printf("tick %d: chunk %v stitched with %d contradictions", nowTick, ch.Coord, out.Contradictions)
		}
		rep.Stitched = append(rep.Stitched, StitchRecord{
			Coord:          ch.Coord,
			Complete:       out.Complete,
			Adopted:        out.Adopted,
			Collapsed:      out.Collapsed,
			Contradictions: out.Contradictions,
			Waiting:        out.Waiting,
		})
	}

	keep := make(map[grid.ChunkCoord]struct{}, len(visible))
	for _, c := range visible {
		keep[c] = struct{}{}
	}
	for _, ch := range chunks {
		if _, ok := keep[ch.Coord]; ok {
			continue
		}
		w.host.DespawnChunk(ch.Coord)
		rep.Despawned = append(rep.Despawned, ch.Coord)
	}
	return rep
}

// spawn generates one chunk and hands it to the host. A panic in either step
// is confined to this chunk.
func (w *World) spawn(c grid.ChunkCoord) (rec SpawnRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generate %v: panic: %v", c, r)
		}
	}()
	res := w.generate(w.cfg.Seed, c, w.schem, w.cfg.ChunkTileLength)
	if res.Grid.Side != w.cfg.ChunkTileLength || len(res.Grid.Cells) != w.cfg.ChunkTileLength*w.cfg.ChunkTileLength {
		return rec, fmt.Errorf("generate %v: grid side %d, want %d", c, res.Grid.Side, w.cfg.ChunkTileLength)
	}
	w.host.SpawnChunk(c, res.Grid)
	ch := store.Chunk{Interior: res.Grid}
	digest := ch.Digest()
	return SpawnRecord{Coord: c, Contradictions: res.Contradictions, Digest: hex.EncodeToString(digest[:])}, nil
}

func (w *World) stitchOne(c grid.ChunkCoord, in stitch.Input) (out stitch.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stitch %v: panic: %v", c, r)
		}
	}()
	out = stitch.Stitch(in)
	w.host.AttachStitchedTiles(c, out.Ring)
	return out, nil
}

// stitchInput gathers the chunk's neighborhood. It reports false when none of
// the four edge neighbors is live, in which case there is nothing to stitch.
func (w *World) stitchInput(ch store.Chunk, view map[grid.ChunkCoord]stitch.View) (stitch.Input, bool) {
	ix, iy := w.mapper.Index(ch.Coord)
	in := stitch.Input{
		IX:        ix,
		IY:        iy,
		Seed:      w.cfg.Seed,
		Schematic: w.schem,
		Self:      view[ch.Coord],
		Neighbors: make(map[stitch.Offset]stitch.View, 8),
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if v, ok := view[w.mapper.Origin(ix+int64(dx), iy+int64(dy))]; ok {
				in.Neighbors[stitch.Offset{DX: dx, DY: dy}] = v
			}
		}
	}
	for _, d := range schematic.Directions {
		dx, dy := d.Delta()
		if _, ok := in.Neighbors[stitch.Offset{DX: dx, DY: dy}]; ok {
			return in, true
		}
	}
	return in, false
}

// GenerateChunk exposes the interior generator with this world's parameters.
func (w *World) GenerateChunk(c grid.ChunkCoord) gen.Result {
	return w.generate(w.cfg.Seed, c, w.schem, w.cfg.ChunkTileLength)
}
