package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := "world_id: alpha\nseed: 99\nrender_distance: 1\nschematic_path: rules/schematic.json\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.WorldID != "alpha" || tune.Seed != 99 || tune.RenderDistance != 1 {
		t.Fatalf("unexpected tuning: %+v", tune)
	}
	if tune.ChunkTileLength != 8 || tune.TileSize != 32 || tune.TickRateHz != 5 {
		t.Fatalf("defaults not kept: %+v", tune)
	}
	if tune.SchematicPath != filepath.Join(dir, "rules", "schematic.json") {
		t.Fatalf("schematic path not resolved: %s", tune.SchematicPath)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("chunk_tile_length: 0\ntile_size: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "chunk_tile_length") || !strings.Contains(err.Error(), "tile_size") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("seed: [1,"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.HasPrefix(err.Error(), "tuning.yaml:") {
		t.Fatalf("expected tuning.yaml error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
