package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"travelers.ai/internal/persistence/indexdb"
	"travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/tuning"
	"travelers.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	Stats() indexdb.Stats
	RecordRun(runID string, tune tuning.Tuning, schem *schematic.Schematic, rawSchematic []byte) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TRAVELERS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported TRAVELERS_INDEX_BACKEND: %s", backend)
	}
}
