package schematic

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/exp/maps"
)

// TileID identifies a tile type within a schematic.
type TileID uint16

// Direction indexes the four allow-lists. The numeric values match the keys
// used in the schematic file.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

var Directions = [4]Direction{North, East, South, West}

func (d Direction) Opposite() Direction { return (d + 2) % 4 }

// Delta returns the unit step for d with +y pointing north.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, 1
	case East:
		return 1, 0
	case South:
		return 0, -1
	default:
		return -1, 0
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	}
	return "Direction(" + strconv.Itoa(int(d)) + ")"
}

type TileType struct {
	ID    TileID
	Name  string
	Sheet string
	// Weight is kept for file compatibility. Tile selection is uniform and
	// does not read it.
	Weight int
	// Allow[d] lists the tile ids permitted immediately in direction d.
	Allow [4][]TileID

	allowSet [4]map[TileID]struct{}
}

// Allows reports whether id may sit immediately in direction d of t.
func (t TileType) Allows(d Direction, id TileID) bool {
	if d < North || d > West || t.allowSet[d] == nil {
		return false
	}
	_, ok := t.allowSet[d][id]
	return ok
}

var (
	ErrUnknownFallback = errors.New("not_found references an unknown tile id")
	ErrUnknownTile     = errors.New("allow-list references an unknown tile id")
	ErrDuplicateTile   = errors.New("duplicate tile id")
	ErrEmpty           = errors.New("no tile types")
)

// FormatError is returned for any schematic that cannot be used for
// generation. Loading never yields a partially valid schematic.
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("schematic %s: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Schematic is an immutable, validated tile adjacency ruleset.
type Schematic struct {
	tiles    map[TileID]TileType
	ids      []TileID
	fallback TileID
	digest   string
}

type tileJSON struct {
	Name   string   `json:"name"`
	Sheet  string   `json:"sheet,omitempty"`
	Weight int      `json:"weight"`
	North  []TileID `json:"0"`
	East   []TileID `json:"1"`
	South  []TileID `json:"2"`
	West   []TileID `json:"3"`
}

//go:embed schematic.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schemaC    *jsonschema.Schema
	schemaErr  error
)

func fileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaC, schemaErr = jsonschema.CompileString("schematic.schema.json", schemaJSON)
	})
	return schemaC, schemaErr
}

func LoadFile(path string) (*Schematic, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Load(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load parses and validates a schematic file.
func Load(raw []byte) (*Schematic, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &FormatError{Op: "decode", Err: err}
	}
	sch, err := fileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schematic schema: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &FormatError{Op: "validate", Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &FormatError{Op: "decode", Err: err}
	}
	var fallback TileID
	if err := json.Unmarshal(fields["not_found"], &fallback); err != nil {
		return nil, &FormatError{Op: "decode not_found", Err: err}
	}
	delete(fields, "not_found")

	keys := maps.Keys(fields)
	slices.Sort(keys)
	tiles := make([]TileType, 0, len(keys))
	for _, key := range keys {
		n, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, &FormatError{Op: "decode tile " + strconv.Quote(key), Err: err}
		}
		var tj tileJSON
		if err := json.Unmarshal(fields[key], &tj); err != nil {
			return nil, &FormatError{Op: "decode tile " + key, Err: err}
		}
		tiles = append(tiles, TileType{
			ID:     TileID(n),
			Name:   tj.Name,
			Sheet:  tj.Sheet,
			Weight: tj.Weight,
			Allow:  [4][]TileID{tj.North, tj.East, tj.South, tj.West},
		})
	}

	s, err := New(fallback, tiles...)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	s.digest = hex.EncodeToString(sum[:])
	return s, nil
}

// New builds a schematic from already decoded tile types, applying the same
// checks as Load.
func New(fallback TileID, tiles ...TileType) (*Schematic, error) {
	if len(tiles) == 0 {
		return nil, &FormatError{Op: "validate", Err: ErrEmpty}
	}
	s := &Schematic{
		tiles:    make(map[TileID]TileType, len(tiles)),
		fallback: fallback,
	}
	for _, t := range tiles {
		if _, dup := s.tiles[t.ID]; dup {
			return nil, &FormatError{Op: "validate", Err: fmt.Errorf("%w: %d", ErrDuplicateTile, t.ID)}
		}
		for d := range t.Allow {
			list := slices.Clone(t.Allow[d])
			slices.Sort(list)
			list = slices.Compact(list)
			t.Allow[d] = list
			t.allowSet[d] = make(map[TileID]struct{}, len(list))
			for _, id := range list {
				t.allowSet[d][id] = struct{}{}
			}
		}
		s.tiles[t.ID] = t
	}
	if _, ok := s.tiles[fallback]; !ok {
		return nil, &FormatError{Op: "validate", Err: fmt.Errorf("%w: %d", ErrUnknownFallback, fallback)}
	}
	for _, t := range s.tiles {
		for d, list := range t.Allow {
			for _, id := range list {
				if _, ok := s.tiles[id]; !ok {
					return nil, &FormatError{
						Op:  "validate",
						Err: fmt.Errorf("%w: tile %d direction %s lists %d", ErrUnknownTile, t.ID, Direction(d), id),
					}
				}
			}
		}
	}
	s.ids = maps.Keys(s.tiles)
	slices.Sort(s.ids)
	return s, nil
}

// Lookup returns the tile type for id. It never panics; unknown ids report false.
func (s *Schematic) Lookup(id TileID) (TileType, bool) {
	if s == nil {
		return TileType{}, false
	}
	t, ok := s.tiles[id]
	return t, ok
}

func (s *Schematic) FallbackID() TileID { return s.fallback }

// IDs returns every tile id in ascending order. The slice is shared; callers
// must not modify it.
func (s *Schematic) IDs() []TileID { return s.ids }

func (s *Schematic) Len() int { return len(s.ids) }

// Digest is the sha256 of the raw file for schematics built by Load, empty otherwise.
func (s *Schematic) Digest() string { return s.digest }

// Allowed returns the ids permitted in direction d of id, or nil for an unknown id.
func (s *Schematic) Allowed(id TileID, d Direction) []TileID {
	t, ok := s.Lookup(id)
	if !ok || d < North || d > West {
		return nil
	}
	return t.Allow[d]
}

// Permits is the adjacency predicate: to may sit immediately in direction d of from.
func (s *Schematic) Permits(from TileID, d Direction, to TileID) bool {
	t, ok := s.Lookup(from)
	return ok && t.Allows(d, to)
}

// Tiles returns all tile types ordered by id.
func (s *Schematic) Tiles() []TileType {
	out := make([]TileType, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.tiles[id])
	}
	return out
}

// Intersect narrows dom to the ids also present in allow. Both must be sorted.
// The result reuses dom's backing array, so a domain can only shrink.
func Intersect(dom, allow []TileID) []TileID {
	out := dom[:0]
	i, j := 0, 0
	for i < len(dom) && j < len(allow) {
		switch {
		case dom[i] < allow[j]:
			i++
		case dom[i] > allow[j]:
			j++
		default:
			out = append(out, dom[i])
			i++
			j++
		}
	}
	return out
}
