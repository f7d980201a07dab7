package tuning

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldID string `yaml:"world_id"`
	Seed    int64  `yaml:"seed"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// ChunkTileLength is the interior side L; the ring adds one seam tile.
	ChunkTileLength int `yaml:"chunk_tile_length"`
	TileSize        int `yaml:"tile_size"`
	RenderDistance  int `yaml:"render_distance"`

	SchematicPath string `yaml:"schematic_path"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:            "world_1",
		Seed:               1337,
		TickRateHz:         5,
		SnapshotEveryTicks: 3000,
		ChunkTileLength:    8,
		TileSize:           32,
		RenderDistance:     3,
		SchematicPath:      "schematic.json",
	}
}

// Load reads tuning.yaml on top of Defaults. A relative schematic_path is
// resolved against the tuning file's directory.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize(path)
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize(path string) {
	t.WorldID = strings.TrimSpace(t.WorldID)
	t.SchematicPath = strings.TrimSpace(t.SchematicPath)
	if t.SchematicPath != "" && !filepath.IsAbs(t.SchematicPath) && path != "" {
		t.SchematicPath = filepath.Join(filepath.Dir(path), t.SchematicPath)
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.WorldID == "" {
		errs = append(errs, errors.New("world_id is required"))
	}
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz))
	}
	if t.ChunkTileLength < 1 || t.ChunkTileLength > 256 {
		errs = append(errs, fmt.Errorf("chunk_tile_length out of range: %d", t.ChunkTileLength))
	}
	if t.TileSize < 1 {
		errs = append(errs, fmt.Errorf("tile_size must be positive: %d", t.TileSize))
	}
	if t.RenderDistance < 0 || t.RenderDistance > 64 {
		errs = append(errs, fmt.Errorf("render_distance out of range: %d", t.RenderDistance))
	}
	if t.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_ticks must not be negative: %d", t.SnapshotEveryTicks))
	}
	if t.SchematicPath == "" {
		errs = append(errs, errors.New("schematic_path is required"))
	}
	return errors.Join(errs...)
}
