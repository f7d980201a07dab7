package schematic

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const threeTiles = `{
  "not_found": 2,
  "0": {"name": "grass", "sheet": "terrain", "weight": 5, "0": [0, 2], "1": [0, 2], "2": [0, 2], "3": [0, 2]},
  "1": {"name": "water", "weight": 1, "0": [1, 2], "1": [1, 2], "2": [1, 2], "3": [2, 1, 1]},
  "2": {"name": "sand", "weight": 1, "0": [0, 1, 2], "1": [0, 1, 2], "2": [0, 1, 2], "3": [0, 1, 2]}
}`

func TestLoad_ParsesTilesAndFallback(t *testing.T) {
	s, err := Load([]byte(threeTiles))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len: got %d want 3", s.Len())
	}
	if s.FallbackID() != 2 {
		t.Fatalf("FallbackID: got %d want 2", s.FallbackID())
	}
	ids := s.IDs()
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("IDs not sorted: %v", ids)
	}
	grass, ok := s.Lookup(0)
	if !ok || grass.Name != "grass" || grass.Sheet != "terrain" || grass.Weight != 5 {
		t.Fatalf("Lookup(0): %+v ok=%v", grass, ok)
	}
	// Duplicates within an allow-list collapse to a set.
	if got := s.Allowed(1, West); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Allowed(1, W): %v", got)
	}
	if s.Digest() == "" {
		t.Fatalf("expected digest for loaded schematic")
	}
}

func TestLookup_UnknownIDDoesNotPanic(t *testing.T) {
	s, err := Load([]byte(threeTiles))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := s.Lookup(99); ok {
		t.Fatalf("expected unknown id to report false")
	}
	if got := s.Allowed(99, North); got != nil {
		t.Fatalf("Allowed on unknown id: %v", got)
	}
	if s.Permits(99, North, 0) {
		t.Fatalf("Permits on unknown id")
	}
	var nilSchem *Schematic
	if _, ok := nilSchem.Lookup(0); ok {
		t.Fatalf("nil schematic lookup")
	}
}

func TestPermits(t *testing.T) {
	s, err := Load([]byte(threeTiles))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := []struct {
		from TileID
		d    Direction
		to   TileID
		want bool
	}{
		{0, North, 0, true},
		{0, North, 1, false},
		{0, East, 2, true},
		{1, South, 0, false},
		{2, West, 1, true},
	}
	for _, tc := range cases {
		if got := s.Permits(tc.from, tc.d, tc.to); got != tc.want {
			t.Fatalf("Permits(%d,%s,%d)=%v want %v", tc.from, tc.d, tc.to, got, tc.want)
		}
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"malformed", `{"not_found": 0,`, nil},
		{"missing_fallback_key", `{"0": {"name": "a", "weight": 1, "0": [], "1": [], "2": [], "3": []}}`, nil},
		{"missing_direction", `{"not_found": 0, "0": {"name": "a", "weight": 1, "0": [], "1": [], "2": []}}`, nil},
		{"non_numeric_key", `{"not_found": 0, "0": {"name": "a", "weight": 1, "0": [], "1": [], "2": [], "3": []}, "x": {}}`, nil},
		{"unknown_fallback", `{"not_found": 7, "0": {"name": "a", "weight": 1, "0": [0], "1": [0], "2": [0], "3": [0]}}`, ErrUnknownFallback},
		{"unknown_allow", `{"not_found": 0, "0": {"name": "a", "weight": 1, "0": [0, 4], "1": [0], "2": [0], "3": [0]}}`, ErrUnknownTile},
		{"duplicate_key_spelling", `{"not_found": 0, "0": {"name": "a", "weight": 1, "0": [0], "1": [0], "2": [0], "3": [0]}, "00": {"name": "b", "weight": 1, "0": [0], "1": [0], "2": [0], "3": [0]}}`, ErrDuplicateTile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Load([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected error, got schematic with %d tiles", s.Len())
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %T: %v", err, err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNew_SharesLoadValidation(t *testing.T) {
	_, err := New(0, TileType{ID: 1, Allow: [4][]TileID{{1}, {1}, {1}, {1}}})
	if !errors.Is(err, ErrUnknownFallback) {
		t.Fatalf("expected ErrUnknownFallback, got %v", err)
	}
	if _, err := New(0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	s, err := New(0, TileType{ID: 0, Allow: [4][]TileID{{0}, {0}, {0}, {0}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Digest() != "" {
		t.Fatalf("expected empty digest for in-memory schematic")
	}
	if !s.Permits(0, South, 0) {
		t.Fatalf("expected self adjacency")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schematic.json")
	if err := os.WriteFile(path, []byte(threeTiles), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len: got %d", s.Len())
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDirection(t *testing.T) {
	for _, d := range Directions {
		if d.Opposite().Opposite() != d {
			t.Fatalf("opposite not involutive for %s", d)
		}
		dx, dy := d.Delta()
		ox, oy := d.Opposite().Delta()
		if dx+ox != 0 || dy+oy != 0 {
			t.Fatalf("delta of %s not opposite", d)
		}
	}
	if North.Opposite() != South || East.Opposite() != West {
		t.Fatalf("unexpected opposites")
	}
}

func TestIntersect(t *testing.T) {
	dom := []TileID{0, 1, 3, 5, 8}
	got := Intersect(dom, []TileID{1, 2, 5, 9})
	if len(got) != 2 || got[0] != 1 || got[1] != 5 {
		t.Fatalf("Intersect: %v", got)
	}
	if got := Intersect([]TileID{1, 2}, nil); len(got) != 0 {
		t.Fatalf("Intersect with empty allow-list: %v", got)
	}
}
