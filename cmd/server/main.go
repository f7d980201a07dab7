package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	persistlog "travelers.ai/internal/persistence/log"
	"travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/store"
	"travelers.ai/internal/sim/tuning"
	"travelers.ai/internal/sim/world"
	"travelers.ai/internal/transport/observer"
)

func main() {
	var (
		addr          = flag.String("addr", ":8080", "http listen address")
		configDir     = flag.String("configs", "./configs", "config directory")
		dataDir       = flag.String("data", "./data", "runtime data directory")
		tuningPath    = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		schematicPath = flag.String("schematic", "", "path to the schematic (default: tuning schematic_path)")
		disableDB     = flag.Bool("disable_db", false, "disable the sqlite index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		focusX = flag.Float64("focus_x", 0, "initial focus x in world units (fresh worlds only)")
		focusY = flag.Float64("focus_y", 0, "initial focus y in world units (fresh worlds only)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	sp := strings.TrimSpace(*schematicPath)
	if sp == "" {
		sp = tune.SchematicPath
	}
	rawSchematic, err := os.ReadFile(sp)
	if err != nil {
		logger.Fatalf("read schematic: %v", err)
	}
	schem, err := schematic.Load(rawSchematic)
	if err != nil {
		logger.Fatalf("load schematic %s: %v", sp, err)
	}
	logger.Printf("schematic %s: %d tiles, fallback=%d digest=%s", sp, schem.Len(), schem.FallbackID(), schem.Digest())

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	runID := uuid.NewString()
	cfg := world.Config{
		ID:                 tune.WorldID,
		RunID:              runID,
		Seed:               tune.Seed,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		ChunkTileLength:    tune.ChunkTileLength,
		TileSize:           tune.TileSize,
		RenderDistance:     tune.RenderDistance,
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(filepath.Join(worldDir, "snapshots"))
	}

	chunks := store.NewChunkStore()
	focus := grid.Vec2{X: *focusX, Y: *focusY}
	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if s.Header.WorldID != "" && s.Header.WorldID != tune.WorldID {
			logger.Fatalf("snapshot world id mismatch: tuning=%s snap=%s", tune.WorldID, s.Header.WorldID)
		}
		// The snapshot's generation parameters win so resumed chunks stay compatible.
		cfg.Seed = s.Seed
		cfg.ChunkTileLength = s.ChunkTileLength
		cfg.TileSize = s.TileSize
		cfg.RenderDistance = s.RenderDistance
		if s.TickRate > 0 {
			cfg.TickRateHz = s.TickRate
		}
		chunks, err = store.ImportChunks(s.ChunkTileLength, s.Chunks)
		if err != nil {
			logger.Fatalf("import snapshot chunks: %v", err)
		}
		focus = grid.Vec2{X: s.FocusX, Y: s.FocusY}
		snap = &s
	}

	hub := observer.NewHub()
	hub.Seed(chunks.EnumerateChunks())
	host := observer.NewHost(store.NewHost(chunks, focus), hub)

	w, err := world.New(cfg, schem, host, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snap != nil {
		if err := w.ImportSnapshot(*snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d chunks=%d", filepath.Base(snapshotToLoad), w.CurrentTick(), chunks.Len())
	}
	logger.Printf("run %s: world=%s seed=%d L=%d tile_size=%d render_distance=%d", runID, cfg.ID, cfg.Seed, cfg.ChunkTileLength, cfg.TileSize, cfg.RenderDistance)

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordRun(runID, tune, schem, rawSchematic); err != nil {
			logger.Printf("index backend: record run: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	chunkLog := persistlog.NewChunkLogger(worldDir)
	defer tickLog.Close()
	defer chunkLog.Close()
	loggers := persistlog.Multi{tickLog, chunkLog, hub}
	if idx != nil {
		loggers = append(loggers, idx)
	}
	w.SetTickLogger(loggers)

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", snapshot.FileName(s.Header.Tick))
				if err := snapshot.WriteSnapshot(path, s); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, s)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	enableAdminHTTP := envBool("TRAVELERS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("TRAVELERS_ENABLE_PPROF_HTTP", false)
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (TRAVELERS_ENABLE_ADMIN_HTTP=false)")
	}
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (TRAVELERS_ENABLE_PPROF_HTTP=false)")
	}
	mux := newMux(httpDeps{
		World:       w,
		Hub:         hub,
		Index:       idx,
		EnableAdmin: enableAdminHTTP,
		EnablePprof: enablePprofHTTP,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Printf("listening on %s", *addr)
	if err := serve(ctx, srv); err != nil {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
