package world

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/gen"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/store"
)

type Config struct {
	ID    string
	RunID string
	Seed  int64

	TickRateHz         int
	SnapshotEveryTicks int

	ChunkTileLength int
	TileSize        int
	RenderDistance  int
}

// Host is the chunk storage and rendering collaborator. Every call is made
// from the goroutine driving Tick.
type Host interface {
	EnumerateChunks() []store.Chunk
	SpawnChunk(c grid.ChunkCoord, interior grid.Grid)
	AttachStitchedTiles(c grid.ChunkCoord, ring grid.Ring)
	DespawnChunk(c grid.ChunkCoord)
	FocusPosition() grid.Vec2
}

// FocusSetter is implemented by hosts whose focus can be moved through Run.
type FocusSetter interface {
	SetFocus(pos grid.Vec2)
}

type generateFunc func(seed int64, c grid.ChunkCoord, schem *schematic.Schematic, l int) gen.Result

// World drives chunk creation, stitching and destruction around the host's
// focus. Tick must not be called concurrently; Run serializes it.
type World struct {
	cfg    Config
	schem  *schematic.Schematic
	mapper grid.Mapper
	host   Host
	logger *log.Logger

	generate generateFunc

	tick   atomic.Uint64
	totals totals

	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics

	focus chan grid.Vec2
	admin chan adminSnapshotReq
	stop  chan struct{}
}

type totals struct {
	Spawned        uint64
	Despawned      uint64
	Stitched       uint64
	Contradictions uint64
	Failures       uint64
}

func (c Config) validate() error {
	var errs []error
	if c.ChunkTileLength < 1 {
		errs = append(errs, fmt.Errorf("chunk tile length must be >= 1: %d", c.ChunkTileLength))
	}
	if c.TileSize < 1 {
		errs = append(errs, fmt.Errorf("tile size must be >= 1: %d", c.TileSize))
	}
	if c.RenderDistance < 0 {
		errs = append(errs, fmt.Errorf("render distance must be >= 0: %d", c.RenderDistance))
	}
	if c.TickRateHz < 0 {
		errs = append(errs, fmt.Errorf("tick rate must be >= 0: %d", c.TickRateHz))
	}
	return errors.Join(errs...)
}

func New(cfg Config, schem *schematic.Schematic, host Host, logger *log.Logger) (*World, error) {
	if schem == nil {
		return nil, errors.New("world: schematic is required")
	}
	if host == nil {
		return nil, errors.New("world: host is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if cfg.TickRateHz == 0 {
		cfg.TickRateHz = 5
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &World{
		cfg:      cfg,
		schem:    schem,
		mapper:   grid.NewMapper(cfg.ChunkTileLength, cfg.TileSize),
		host:     host,
		logger:   logger,
		generate: gen.Generate,
		focus:    make(chan grid.Vec2, 16),
		admin:    make(chan adminSnapshotReq, 4),
		stop:     make(chan struct{}),
	}, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() Config { return w.cfg }

func (w *World) Mapper() grid.Mapper { return w.mapper }

func (w *World) Schematic() *schematic.Schematic { return w.schem }

// CurrentTick is the number of the next tick to run.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
