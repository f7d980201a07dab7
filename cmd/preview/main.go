// Command preview generates the chunks around a focus point and prints them
// as a character map, one glyph per tile, north up.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/store"
	"travelers.ai/internal/sim/tuning"
	"travelers.ai/internal/sim/world"
)

func main() {
	var (
		configDir = flag.String("configs", "./configs", "config directory")
		seed      = flag.Int64("seed", 0, "override world seed (0 keeps tuning.yaml)")
		radius    = flag.Int("r", -1, "render distance override")
		ticks     = flag.Int("ticks", 2, "ticks to run before printing")
		fx        = flag.Float64("x", 0, "focus x in world units")
		fy        = flag.Float64("y", 0, "focus y in world units")
		legend    = flag.Bool("legend", true, "print the glyph legend")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[preview] ", log.LstdFlags)

	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	schem, err := schematic.LoadFile(tune.SchematicPath)
	if err != nil {
		logger.Fatalf("load schematic: %v", err)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *radius >= 0 {
		tune.RenderDistance = *radius
	}

	cfg := world.Config{
		ID:              tune.WorldID,
		Seed:            tune.Seed,
		TickRateHz:      tune.TickRateHz,
		ChunkTileLength: tune.ChunkTileLength,
		TileSize:        tune.TileSize,
		RenderDistance:  tune.RenderDistance,
	}
	chunks := store.NewChunkStore()
	host := store.NewHost(chunks, grid.Vec2{X: *fx, Y: *fy})
	w, err := world.New(cfg, schem, host, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	for i := 0; i < max(*ticks, 1); i++ {
		rep := w.Tick()
		logger.Printf("tick %d: spawned=%d stitched=%d waiting=%d contradictions=%d",
			rep.Tick, len(rep.Spawned), len(rep.Stitched), rep.Waiting, rep.Contradictions())
	}

	glyphs := glyphTable(schem)
	for _, line := range render(chunks, w.Mapper(), schem, glyphs) {
		fmt.Println(line)
	}
	if *legend {
		printLegend(os.Stdout, schem, glyphs)
	}
}

// glyphTable assigns each tile the first letter of its name. Later tiles
// whose letter is taken get the upper-case form, then a digit.
func glyphTable(s *schematic.Schematic) map[schematic.TileID]byte {
	out := make(map[schematic.TileID]byte, s.Len())
	used := map[byte]bool{' ': true, '?': true}
	for _, t := range s.Tiles() {
		var cands []byte
		if name := strings.TrimSpace(t.Name); name != "" {
			c := strings.ToLower(name)[0]
			cands = append(cands, c, strings.ToUpper(name)[0])
		}
		for d := byte('0'); d <= '9'; d++ {
			cands = append(cands, d)
		}
		out[t.ID] = '#'
		for _, c := range cands {
			if !used[c] {
				used[c] = true
				out[t.ID] = c
				break
			}
		}
	}
	return out
}

// render draws every stored cell. Tiles outside any chunk print as a space
// and unset cells as '?'.
func render(s *store.ChunkStore, m grid.Mapper, schem *schematic.Schematic, glyphs map[schematic.TileID]byte) []string {
	if s.Len() == 0 {
		return nil
	}
	type pos struct{ x, y int64 }
	tiles := make(map[pos]byte)
	minX, minY := int64(math.MaxInt64), int64(math.MaxInt64)
	maxX, maxY := int64(math.MinInt64), int64(math.MinInt64)
	put := func(x, y int64, c grid.Cell) {
		g := byte('?')
		if c.Set {
			if v, ok := glyphs[c.ID]; ok {
				g = v
			}
		}
		if prev, ok := tiles[pos{x, y}]; ok && prev != '?' && g == '?' {
			return
		}
		tiles[pos{x, y}] = g
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}

	for _, ch := range s.EnumerateChunks() {
		tx, ty := m.TileOrigin(ch.Coord)
		for i, c := range ch.Interior.Cells {
			x, y := ch.Interior.Pos(i)
			put(tx+int64(x), ty+int64(y), c)
		}
		for i, c := range ch.Ring.Cells {
			x, y := ch.Ring.Pos(i)
			put(tx+int64(x), ty+int64(y), c)
		}
	}

	lines := make([]string, 0, maxY-minY+1)
	for y := maxY; y >= minY; y-- {
		row := make([]byte, 0, maxX-minX+1)
		for x := minX; x <= maxX; x++ {
			g, ok := tiles[pos{x, y}]
			if !ok {
				g = ' '
			}
			row = append(row, g)
		}
		lines = append(lines, strings.TrimRight(string(row), " "))
	}
	return lines
}

func printLegend(w io.Writer, s *schematic.Schematic, glyphs map[schematic.TileID]byte) {
	fmt.Fprintln(w)
	for _, t := range s.Tiles() {
		fallback := ""
		if t.ID == s.FallbackID() {
			fallback = " (fallback)"
		}
		fmt.Fprintf(w, "%c  %d %s%s\n", glyphs[t.ID], t.ID, t.Name, fallback)
	}
	fmt.Fprintln(w, "?  unresolved")
}
