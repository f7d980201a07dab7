package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures every live chunk plus the parameters needed to keep
// generating compatible chunks after a resume.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed            int64  `json:"seed"`
	TickRate        int    `json:"tick_rate_hz"`
	ChunkTileLength int    `json:"chunk_tile_length"`
	TileSize        int    `json:"tile_size"`
	RenderDistance  int    `json:"render_distance"`
	SchematicDigest string `json:"schematic_digest,omitempty"`

	FocusX float64 `json:"focus_x"`
	FocusY float64 `json:"focus_y"`

	Chunks []ChunkV1 `json:"chunks"`

	Counters CountersV1 `json:"counters"`
}

// ChunkV1 stores a chunk's cells as parallel id/set slices.
type ChunkV1 struct {
	X    int64 `json:"x"`
	Y    int64 `json:"y"`
	Side int   `json:"side"`

	Interior    []uint16 `json:"interior"`
	InteriorSet []bool   `json:"interior_set"`
	Ring        []uint16 `json:"ring"`
	RingSet     []bool   `json:"ring_set"`
	Dirty       bool     `json:"dirty"`
}

type CountersV1 struct {
	Spawned        uint64 `json:"spawned"`
	Despawned      uint64 `json:"despawned"`
	Stitched       uint64 `json:"stitched"`
	Contradictions uint64 `json:"contradictions"`
}

// FileName is the on-disk name for a snapshot taken at tick.
func FileName(tick uint64) string {
	return fmt.Sprintf("%d.snap.zst", tick)
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Latest returns the highest-tick snapshot in dir, or "" if there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
