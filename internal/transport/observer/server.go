package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"travelers.ai/internal/observerproto"
	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	hub   *Hub
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, hub *Hub, logger *log.Logger) *Server {
	return &Server{
		world: w,
		hub:   hub,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		schem := s.world.Schematic()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			RunID:           cfg.RunID,
			Tick:            s.world.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:      cfg.TickRateHz,
				ChunkTileLength: cfg.ChunkTileLength,
				TileSize:        cfg.TileSize,
				ChunkExtent:     s.world.Mapper().Extent(),
				RenderDistance:  cfg.RenderDistance,
				Seed:            cfg.Seed,
			},
			Fallback: uint16(schem.FallbackID()),
		}
		for _, t := range schem.Tiles() {
			resp.Tiles = append(resp.Tiles, observerproto.TileInfo{ID: uint16(t.ID), Name: t.Name, Sheet: t.Sheet})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

type clientMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := s.hub.join(sid, sub.MaxChunks)
		defer s.hub.leave(sid)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-sess.dataOut:
				case b = <-sess.tickOut:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates and FOCUS moves.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleClientMsg(sid, msg)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handleClientMsg(sid string, msg []byte) {
	var base clientMsg
	if err := json.Unmarshal(msg, &base); err != nil || base.ProtocolVersion != observerproto.Version {
		return
	}
	switch base.Type {
	case "SUBSCRIBE":
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			return
		}
		normalizeSubscribe(&sub)
		s.hub.resubscribe(sid, sub.MaxChunks)
	case "FOCUS":
		var f observerproto.FocusMsg
		if err := json.Unmarshal(msg, &f); err != nil {
			return
		}
		if !s.world.SetFocus(grid.Vec2{X: f.X, Y: f.Y}) && s.log != nil {
			s.log.Printf("observer %s: focus queue full, dropping move", sid)
		}
	}
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxChunks <= 0 {
		sub.MaxChunks = 1024
	}
	if sub.MaxChunks > 16384 {
		sub.MaxChunks = 16384
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
