package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(r world.TickReport) error { return l.w.Write(r) }
func (l *TickLogger) Close() error                       { return l.w.Close() }

// ChunkEvent is one chunk lifecycle transition.
type ChunkEvent struct {
	RunID string          `json:"run_id,omitempty"`
	Tick  uint64          `json:"tick"`
	Type  string          `json:"type"` // SPAWN, STITCH, DESPAWN or FAIL
	Coord grid.ChunkCoord `json:"coord"`

	Digest         string `json:"digest,omitempty"`
	Contradictions int    `json:"contradictions,omitempty"`
	Complete       bool   `json:"complete,omitempty"`
	Stage          string `json:"stage,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChunkLogger explodes each tick report into per-chunk events.
type ChunkLogger struct{ w *JSONLZstdWriter }

func NewChunkLogger(worldDir string) *ChunkLogger {
	return &ChunkLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "chunks"), "chunks")}
}

func (l *ChunkLogger) WriteTick(r world.TickReport) error {
	for _, ev := range ChunkEvents(r) {
		if err := l.w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

func (l *ChunkLogger) Close() error { return l.w.Close() }

// ChunkEvents lists the report's transitions: spawns, stitches, failures,
// then despawns.
func ChunkEvents(r world.TickReport) []ChunkEvent {
	out := make([]ChunkEvent, 0, len(r.Spawned)+len(r.Stitched)+len(r.Failed)+len(r.Despawned))
	for _, s := range r.Spawned {
		out = append(out, ChunkEvent{RunID: r.RunID, Tick: r.Tick, Type: "SPAWN", Coord: s.Coord, Digest: s.Digest, Contradictions: s.Contradictions})
	}
	for _, s := range r.Stitched {
		out = append(out, ChunkEvent{RunID: r.RunID, Tick: r.Tick, Type: "STITCH", Coord: s.Coord, Contradictions: s.Contradictions, Complete: s.Complete})
	}
	for _, f := range r.Failed {
		out = append(out, ChunkEvent{RunID: r.RunID, Tick: r.Tick, Type: "FAIL", Coord: f.Coord, Stage: f.Stage, Error: f.Error})
	}
	for _, c := range r.Despawned {
		out = append(out, ChunkEvent{RunID: r.RunID, Tick: r.Tick, Type: "DESPAWN", Coord: c})
	}
	return out
}

// Multi fans a tick report out to several loggers. Every logger is called;
// errors are joined.
type Multi []world.TickLogger

func (m Multi) WriteTick(r world.TickReport) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.WriteTick(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
