package observer

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"travelers.ai/internal/observerproto"
	"travelers.ai/internal/sim/encoding"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/store"
	"travelers.ai/internal/sim/world"
)

// Hub fans chunk and tick updates out to observer sessions. Publishing
// methods are called from the world loop; sessions join and leave from HTTP
// handlers.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	chunks   map[grid.ChunkCoord]*chunkState

	drops atomic.Uint64
}

type session struct {
	id        string
	tickOut   chan []byte
	dataOut   chan []byte
	maxChunks int
}

type chunkState struct {
	side     int
	interior string
	msg      []byte
}

type HubStats struct {
	Sessions     int    `json:"sessions"`
	CachedChunks int    `json:"cached_chunks"`
	DropTotal    uint64 `json:"drop_total"`
}

func NewHub() *Hub {
	return &Hub{
		sessions: map[string]*session{},
		chunks:   map[grid.ChunkCoord]*chunkState{},
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HubStats{
		Sessions:     len(h.sessions),
		CachedChunks: len(h.chunks),
		DropTotal:    h.drops.Load(),
	}
}

// Seed primes the chunk cache, typically with chunks restored from a
// snapshot before the world starts ticking.
func (h *Hub) Seed(chunks []store.Chunk) {
	for _, ch := range chunks {
		h.publishChunk(ch.Coord, encodeCells(ch.Interior.Cells), ch.Interior.Side, ch.Ring, false)
	}
}

// WriteTick broadcasts a TICK message. It implements world.TickLogger.
func (h *Hub) WriteTick(r world.TickReport) error {
	b, err := json.Marshal(observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            r.Tick,
		Focus:           [2]float64{r.Focus.X, r.Focus.Y},
		LiveChunks:      r.LiveChunks,
		DirtyChunks:     r.DirtyChunks,
		Spawned:         len(r.Spawned),
		Stitched:        len(r.Stitched),
		Despawned:       len(r.Despawned),
		Contradictions:  r.Contradictions(),
		StepMS:          r.StepMS,
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		sendLatest(s.tickOut, b)
	}
	return nil
}

func (h *Hub) chunkSpawned(c grid.ChunkCoord, interior grid.Grid) {
	h.publishChunk(c, encodeCells(interior.Cells), interior.Side, grid.NewRing(interior.Side), true)
}

func (h *Hub) chunkStitched(c grid.ChunkCoord, ring grid.Ring) {
	h.mu.Lock()
	st := h.chunks[c]
	h.mu.Unlock()
	if st == nil {
		return
	}
	h.publishChunk(c, st.interior, st.side, ring, true)
}

func (h *Hub) chunkDespawned(c grid.ChunkCoord) {
	b, err := json.Marshal(observerproto.ChunkEvictMsg{
		Type:            "CHUNK_EVICT",
		ProtocolVersion: observerproto.Version,
		X:               c.X,
		Y:               c.Y,
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.chunks, c)
	for _, s := range h.sessions {
		h.send(s, b)
	}
}

func (h *Hub) publishChunk(c grid.ChunkCoord, interior string, side int, ring grid.Ring, broadcast bool) {
	b, err := json.Marshal(observerproto.ChunkMsg{
		Type:            "CHUNK",
		ProtocolVersion: observerproto.Version,
		X:               c.X,
		Y:               c.Y,
		Side:            side,
		Encoding:        observerproto.EncodingRLE,
		Interior:        interior,
		Ring:            encodeCells(ring.Cells),
		Complete:        ring.Complete(),
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks[c] = &chunkState{side: side, interior: interior, msg: b}
	if !broadcast {
		return
	}
	for _, s := range h.sessions {
		h.send(s, b)
	}
}

// join registers a session and queues up to maxChunks cached chunks in
// coordinate order.
func (h *Hub) join(id string, maxChunks int) *session {
	s := &session{
		id:        id,
		tickOut:   make(chan []byte, 8),
		dataOut:   make(chan []byte, 4096),
		maxChunks: maxChunks,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = s
	h.replayLocked(s)
	return s
}

func (h *Hub) resubscribe(id string, maxChunks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions[id]
	if s == nil {
		return
	}
	s.maxChunks = maxChunks
	h.replayLocked(s)
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *Hub) replayLocked(s *session) {
	keys := make([]grid.ChunkCoord, 0, len(h.chunks))
	for k := range h.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	if len(keys) > s.maxChunks {
		keys = keys[:s.maxChunks]
	}
	for _, k := range keys {
		h.send(s, h.chunks[k].msg)
	}
}

func (h *Hub) send(s *session, b []byte) {
	select {
	case s.dataOut <- b:
	default:
		h.drops.Add(1)
	}
}

func encodeCells(cells []grid.Cell) string {
	ids := make([]uint16, len(cells))
	for i, c := range cells {
		if c.Set {
			ids[i] = uint16(c.ID)
		} else {
			ids[i] = observerproto.Unset
		}
	}
	return encoding.EncodeRLE(ids)
}

// sendLatest keeps only the newest message when the channel is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
