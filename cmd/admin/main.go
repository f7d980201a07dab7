package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"travelers.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "focus":
			focusCmd(os.Args[2:])
			return
		case "latest":
			latestCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// latestCmd prints the header of the newest snapshot on disk.
func latestCmd(args []string) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	_ = fs.Parse(args)

	path := snapshot.Latest(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshots found")
		os.Exit(1)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	dirty := 0
	for _, ch := range snap.Chunks {
		if ch.Dirty {
			dirty++
		}
	}
	printJSON(os.Stdout, map[string]any{
		"path":              path,
		"world_id":          snap.Header.WorldID,
		"tick":              snap.Header.Tick,
		"seed":              snap.Seed,
		"chunk_tile_length": snap.ChunkTileLength,
		"tile_size":         snap.TileSize,
		"chunks":            len(snap.Chunks),
		"dirty":             dirty,
		"focus":             [2]float64{snap.FocusX, snap.FocusY},
		"schematic_digest":  snap.SchematicDigest,
	})
}
