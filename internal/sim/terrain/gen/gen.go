package gen

import (
	"math/rand"

	"travelers.ai/internal/sim/mathx"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
)

type State int

const (
	Uninitialized State = iota
	Seeded
	Propagating
	Collapsed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Seeded:
		return "SEEDED"
	case Propagating:
		return "PROPAGATING"
	case Collapsed:
		return "COLLAPSED"
	}
	return "UNKNOWN"
}

// ChunkHash derives the per-chunk random seed. Only the coordinate sum is
// mixed in, so chunks on the same anti-diagonal share a hash.
func ChunkHash(seed int64, c grid.ChunkCoord) uint64 {
	return mathx.HashSum(seed, c.X+c.Y)
}

// Result is the interior produced for one chunk.
type Result struct {
	Grid grid.Grid
	Hash uint64
	// Contradictions counts cells left unset because their domain emptied.
	Contradictions int
}

// Generate runs the solver for one chunk to completion. It is a pure function
// of its arguments.
func Generate(seed int64, c grid.ChunkCoord, schem *schematic.Schematic, l int) Result {
	s := NewSolver(seed, c, schem, l)
	for s.Step() {
	}
	return s.Result()
}

// Solver is the step-wise interior generator. Each Step performs one
// propagate/select/collapse round.
type Solver struct {
	schem *schematic.Schematic
	hash  uint64
	state State

	cells   grid.Grid
	domains [][]schematic.TileID

	contradictions int
}

func NewSolver(seed int64, c grid.ChunkCoord, schem *schematic.Schematic, l int) *Solver {
	return &Solver{
		schem: schem,
		hash:  ChunkHash(seed, c),
		cells: grid.NewGrid(l),
	}
}

func (s *Solver) State() State { return s.state }

func (s *Solver) Grid() grid.Grid { return s.cells }

// DomainSizes reports the current domain size per cell in grid storage
// order. Collapsed cells report 0.
func (s *Solver) DomainSizes() []int {
	out := make([]int, len(s.cells.Cells))
	for i := range out {
		if !s.cells.Cells[i].Set && s.domains != nil {
			out[i] = len(s.domains[i])
		}
	}
	return out
}

func (s *Solver) Result() Result {
	return Result{Grid: s.cells, Hash: s.hash, Contradictions: s.contradictions}
}

// Step advances the solver and reports whether more work remains.
func (s *Solver) Step() bool {
	switch s.state {
	case Uninitialized:
		s.seed()
		return s.state != Collapsed
	case Seeded, Propagating:
		s.state = Propagating
		s.propagate()
		i, ok := s.selectCell()
		if !ok {
			s.finish()
			return false
		}
		s.collapse(i)
		return true
	}
	return false
}

func (s *Solver) seed() {
	n := len(s.cells.Cells)
	if n == 0 {
		s.state = Collapsed
		return
	}
	full := s.schem.IDs()
	s.domains = make([][]schematic.TileID, n)
	for i := range s.domains {
		s.domains[i] = append([]schematic.TileID(nil), full...)
	}
	s.collapse(s.cells.Index(0, 0))
	s.state = Seeded
}

func (s *Solver) propagate() {
	for i := range s.domains {
		if s.cells.Cells[i].Set {
			s.domains[i] = nil
			continue
		}
		if len(s.domains[i]) == 0 {
			continue
		}
		x, y := s.cells.Pos(i)
		for _, d := range schematic.Directions {
			dx, dy := d.Delta()
			nb := s.cells.At(x+dx, y+dy)
			if !nb.Set {
				continue
			}
			// The neighbor in direction d sees this cell in direction d.Opposite().
			s.domains[i] = schematic.Intersect(s.domains[i], s.schem.Allowed(nb.ID, d.Opposite()))
		}
	}
}

// selectCell picks the smallest nonzero domain; the first one in scan order wins ties.
func (s *Solver) selectCell() (int, bool) {
	best, bestLen := -1, 0
	for i, dom := range s.domains {
		if s.cells.Cells[i].Set || len(dom) == 0 {
			continue
		}
		if best < 0 || len(dom) < bestLen {
			best, bestLen = i, len(dom)
		}
	}
	return best, best >= 0
}

func (s *Solver) collapse(i int) {
	id := draw(s.hash, s.domains[i])
	x, y := s.cells.Pos(i)
	s.cells.Set(x, y, id)
	s.domains[i] = nil
}

func (s *Solver) finish() {
	s.contradictions = s.cells.Unresolved()
	s.state = Collapsed
}

// draw picks uniformly from dom using a generator freshly seeded with h, so
// every draw in a chunk starts from the same stream position.
func draw(h uint64, dom []schematic.TileID) schematic.TileID {
	r := rand.New(rand.NewSource(int64(h)))
	return dom[r.Intn(len(dom))]
}
