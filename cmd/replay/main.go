package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/gen"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/store"
	"travelers.ai/internal/sim/world"
)

// replay re-runs interior generation and checks it against what a server
// recorded: the interiors stored in a snapshot and the spawn digests in the
// tick logs.
func main() {
	var (
		snapPath      = flag.String("snapshot", "", "path to .snap.zst (optional)")
		ticksDir      = flag.String("ticks", "", "ticks dir containing ticks-*.jsonl.zst (optional)")
		schematicPath = flag.String("schematic", "./configs/schematic.json", "schematic the run used")
		seed          = flag.Int64("seed", 0, "world seed (required with -ticks when no -snapshot)")
		l             = flag.Int("chunk_tile_length", 0, "interior side (required with -ticks when no -snapshot)")
		tileSize      = flag.Int("tile_size", 0, "tile size (required with -ticks when no -snapshot)")
	)
	flag.Parse()

	if *snapPath == "" && *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -ticks")
		os.Exit(2)
	}

	schem, err := schematic.LoadFile(*schematicPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load schematic:", err)
		os.Exit(1)
	}

	p := params{Seed: *seed, L: *l, TileSize: *tileSize}
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d world=%s tick=%d seed=%d L=%d tile_size=%d chunks=%d\n",
			snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.ChunkTileLength, snap.TileSize, len(snap.Chunks))
		if snap.SchematicDigest != "" && snap.SchematicDigest != schem.Digest() {
			fmt.Fprintf(os.Stderr, "warning: schematic digest %s differs from snapshot %s\n", schem.Digest(), snap.SchematicDigest)
		}
		p = params{Seed: snap.Seed, L: snap.ChunkTileLength, TileSize: snap.TileSize}
		n, err := verifySnapshot(snap, schem)
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot ok: checked=%d chunks\n", n)
	}

	if *ticksDir == "" {
		return
	}
	if p.L < 1 || p.TileSize < 1 {
		fmt.Fprintln(os.Stderr, "missing -chunk_tile_length or -tile_size")
		os.Exit(2)
	}
	files, err := listTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}
	var checked uint64
	for _, path := range files {
		if err := replayFile(path, p, schem, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d spawns\n", checked)
}

type params struct {
	Seed     int64
	L        int
	TileSize int
}

func digestOf(interior grid.Grid) string {
	ch := store.Chunk{Interior: interior}
	d := ch.Digest()
	return hex.EncodeToString(d[:])
}

// verifySnapshot regenerates every stored chunk and compares interiors.
func verifySnapshot(snap snapshot.SnapshotV1, schem *schematic.Schematic) (int, error) {
	st, err := store.ImportChunks(snap.ChunkTileLength, snap.Chunks)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ch := range st.EnumerateChunks() {
		want := gen.Generate(snap.Seed, ch.Coord, schem, snap.ChunkTileLength)
		if got, exp := digestOf(ch.Interior), digestOf(want.Grid); got != exp {
			return n, fmt.Errorf("chunk %v: interior digest %s, regenerated %s", ch.Coord, got, exp)
		}
		n++
	}
	return n, nil
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(path string, p params, schem *schematic.Schematic, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry world.TickReport
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		for _, sp := range entry.Spawned {
			res := gen.Generate(p.Seed, sp.Coord, schem, p.L)
			if got := digestOf(res.Grid); got != sp.Digest {
				return fmt.Errorf("digest mismatch at tick %d chunk %v: got=%s want=%s", entry.Tick, sp.Coord, got, sp.Digest)
			}
			if res.Contradictions != sp.Contradictions {
				return fmt.Errorf("contradiction count mismatch at tick %d chunk %v: got=%d want=%d", entry.Tick, sp.Coord, res.Contradictions, sp.Contradictions)
			}
			*checked++
		}
	}
	return sc.Err()
}
