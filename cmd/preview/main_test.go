package main

import (
	"strings"
	"testing"

	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/store"
	"travelers.ai/internal/sim/world"
)

func openSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	all := []schematic.TileID{0, 1}
	s, err := schematic.New(0,
		schematic.TileType{ID: 0, Name: "grass", Allow: [4][]schematic.TileID{all, all, all, all}},
		schematic.TileType{ID: 1, Name: "gravel", Allow: [4][]schematic.TileID{all, all, all, all}},
	)
	if err != nil {
		t.Fatalf("schematic.New: %v", err)
	}
	return s
}

func TestGlyphTable_ResolvesCollisions(t *testing.T) {
	g := glyphTable(openSchematic(t))
	if g[0] != 'g' || g[1] != 'G' {
		t.Fatalf("glyphs = %q %q, want g G", g[0], g[1])
	}
}

func TestRender_CoversEveryChunk(t *testing.T) {
	schem := openSchematic(t)
	chunks := store.NewChunkStore()
	w, err := world.New(world.Config{Seed: 3, ChunkTileLength: 2, TileSize: 1, RenderDistance: 1}, schem, store.NewHost(chunks, grid.Vec2{}), nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	w.Tick()

	lines := render(chunks, w.Mapper(), schem, glyphTable(schem))
	// Three chunks per axis at pitch 3, plus the outer seam on both sides.
	if len(lines) != 10 {
		t.Fatalf("rows=%d want 10:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	center := lines[4]
	if !strings.ContainsAny(center, "gG") {
		t.Fatalf("row %q has no tiles", center)
	}
	// The center chunk's interior is fully generated.
	for _, row := range lines[4:6] {
		if len(row) < 6 || strings.ContainsAny(row[4:6], "? ") {
			t.Fatalf("center interior row %q has gaps", row)
		}
	}
}

func TestRender_EmptyStore(t *testing.T) {
	if lines := render(store.NewChunkStore(), grid.NewMapper(2, 1), openSchematic(t), nil); lines != nil {
		t.Fatalf("lines=%v want nil", lines)
	}
}
