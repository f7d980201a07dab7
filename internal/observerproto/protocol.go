package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Unset marks an unresolved cell in encoded chunk data.
const Unset uint16 = 0xFFFF

// Encoding of ChunkMsg cell data: base64 uvarint (id, run) pairs over the
// interior in x-major order, and over the ring in ring order.
const EncodingRLE = "RLE_U16"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MaxChunks       int    `json:"max_chunks"`
}

// Client -> Server. Moves the world focus.
type FocusMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	RunID           string      `json:"run_id,omitempty"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Tiles           []TileInfo  `json:"tiles"`
	Fallback        uint16      `json:"fallback"`
}

type WorldParams struct {
	TickRateHz      int   `json:"tick_rate_hz"`
	ChunkTileLength int   `json:"chunk_tile_length"`
	TileSize        int   `json:"tile_size"`
	ChunkExtent     int64 `json:"chunk_extent"`
	RenderDistance  int   `json:"render_distance"`
	Seed            int64 `json:"seed"`
}

type TileInfo struct {
	ID    uint16 `json:"id"`
	Name  string `json:"name,omitempty"`
	Sheet string `json:"sheet,omitempty"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Focus [2]float64 `json:"focus"`

	LiveChunks     int     `json:"live_chunks"`
	DirtyChunks    int     `json:"dirty_chunks"`
	Spawned        int     `json:"spawned"`
	Stitched       int     `json:"stitched"`
	Despawned      int     `json:"despawned"`
	Contradictions int     `json:"contradictions"`
	StepMS         float64 `json:"step_ms"`
}

// Server -> Client. Full cell data for a chunk; resent whenever its ring
// changes.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	X               int64  `json:"x"`
	Y               int64  `json:"y"`
	Side            int    `json:"side"`
	Encoding        string `json:"encoding"`
	Interior        string `json:"interior"`
	Ring            string `json:"ring"`
	Complete        bool   `json:"complete"`
}

// Server -> Client. Evict a chunk from the client cache.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	X               int64  `json:"x"`
	Y               int64  `json:"y"`
}
