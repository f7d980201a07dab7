package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"travelers.ai/internal/observerproto"
	"travelers.ai/internal/sim/encoding"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/terrain/store"
	"travelers.ai/internal/sim/world"
)

func testSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	u := func(id schematic.TileID, name string, allow ...schematic.TileID) schematic.TileType {
		return schematic.TileType{ID: id, Name: name, Allow: [4][]schematic.TileID{allow, allow, allow, allow}}
	}
	s, err := schematic.New(2, u(0, "grass", 0, 2), u(1, "water", 1, 2), u(2, "sand", 0, 1, 2))
	if err != nil {
		t.Fatalf("schematic.New: %v", err)
	}
	return s
}

func newTestWorld(t *testing.T) (*world.World, *Hub) {
	t.Helper()
	hub := NewHub()
	host := NewHost(store.NewHost(nil, grid.Vec2{}), hub)
	w, err := world.New(world.Config{
		ID:              "obs",
		RunID:           "run-obs",
		Seed:            3,
		TickRateHz:      200,
		ChunkTileLength: 4,
		TileSize:        2,
		RenderDistance:  1,
	}, testSchematic(t), host, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	w.SetTickLogger(hub)
	return w, hub
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"::1":            true,
		"10.0.0.2:5555":  false,
		"example.com:80": false,
		"":               false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBootstrapHandler(t *testing.T) {
	w, hub := newTestWorld(t)
	srv := NewServer(w, hub, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	rec := httptest.NewRecorder()
	srv.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldID != "obs" || resp.RunID != "run-obs" || resp.Fallback != 2 {
		t.Fatalf("unexpected bootstrap: %+v", resp)
	}
	if resp.WorldParams.ChunkExtent != 10 || len(resp.Tiles) != 3 || resp.Tiles[1].Name != "water" {
		t.Fatalf("unexpected params/tiles: %+v %+v", resp.WorldParams, resp.Tiles)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:9999"
	rec = httptest.NewRecorder()
	srv.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-loopback status = %d, want 403", rec.Code)
	}
}

func TestHub_PublishAndReplay(t *testing.T) {
	hub := NewHub()
	g := grid.NewGrid(2)
	g.Set(0, 0, 1)
	hub.chunkSpawned(grid.ChunkCoord{X: 3}, g)
	hub.chunkSpawned(grid.ChunkCoord{X: 0}, g)

	s := hub.join("a", 1)
	if len(s.dataOut) != 1 {
		t.Fatalf("replayed %d chunks, want 1", len(s.dataOut))
	}
	var first observerproto.ChunkMsg
	if err := json.Unmarshal(<-s.dataOut, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Type != "CHUNK" || first.X != 0 {
		t.Fatalf("replay order: %+v", first)
	}
	ids, err := encoding.DecodeRLE(first.Interior, 4)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if ids[0] != 1 || ids[1] != observerproto.Unset {
		t.Fatalf("interior ids = %v", ids)
	}

	ring := grid.NewRing(2)
	for i := 0; i < ring.Len(); i++ {
		ring.Set(i, 2)
	}
	hub.chunkStitched(grid.ChunkCoord{X: 3}, ring)
	var stitched observerproto.ChunkMsg
	if err := json.Unmarshal(<-s.dataOut, &stitched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !stitched.Complete || stitched.Interior != first.Interior {
		t.Fatalf("stitched message = %+v", stitched)
	}

	hub.chunkDespawned(grid.ChunkCoord{X: 3})
	var evict observerproto.ChunkEvictMsg
	if err := json.Unmarshal(<-s.dataOut, &evict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evict.Type != "CHUNK_EVICT" || evict.X != 3 {
		t.Fatalf("evict = %+v", evict)
	}
	if st := hub.Stats(); st.CachedChunks != 1 || st.Sessions != 1 {
		t.Fatalf("stats = %+v", st)
	}

	// Stitch for an unknown chunk is ignored.
	hub.chunkStitched(grid.ChunkCoord{X: 99}, ring)
	if len(s.dataOut) != 0 {
		t.Fatalf("unexpected message for unknown chunk")
	}
	hub.leave("a")
	if hub.Stats().Sessions != 0 {
		t.Fatalf("session not removed")
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var base clientMsg
	if err := json.Unmarshal(b, &base); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base.Type, b
}

func TestWSHandler_StreamsChunksTicksAndFocus(t *testing.T) {
	w, hub := newTestWorld(t)
	w.Tick()

	srv := NewServer(w, hub, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer", srv.WSHandler())
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub, _ := json.Marshal(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 9; i++ {
		typ, b := readMsg(t, conn)
		if typ != "CHUNK" {
			t.Fatalf("message %d type %q, want CHUNK", i, typ)
		}
		var cm observerproto.ChunkMsg
		if err := json.Unmarshal(b, &cm); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, err := encoding.DecodeRLE(cm.Interior, 16); err != nil {
			t.Fatalf("interior: %v", err)
		}
		if _, err := encoding.DecodeRLE(cm.Ring, 20); err != nil {
			t.Fatalf("ring: %v", err)
		}
	}

	focus, _ := json.Marshal(observerproto.FocusMsg{Type: "FOCUS", ProtocolVersion: observerproto.Version, X: 55, Y: -5})
	if err := conn.WriteMessage(websocket.TextMessage, focus); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for i := 0; i < 500; i++ {
		typ, b := readMsg(t, conn)
		if typ != "TICK" {
			continue
		}
		var tm observerproto.TickMsg
		if err := json.Unmarshal(b, &tm); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if tm.Focus == [2]float64{55, -5} {
			return
		}
	}
	t.Fatalf("focus move never observed")
}

func TestWSHandler_RejectsBadHandshake(t *testing.T) {
	w, hub := newTestWorld(t)
	srv := NewServer(w, hub, nil)
	ts := httptest.NewServer(srv.WSHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO","protocol_version":"0.1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v, want policy violation close", err)
	}
}
