package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"travelers.ai/internal/sim/terrain/grid"
	"travelers.ai/internal/sim/world"
	"travelers.ai/internal/transport/observer"
)

type httpDeps struct {
	World *world.World
	Hub   *observer.Hub
	Index runtimeIndex

	EnableAdmin bool
	EnablePprof bool
}

func newMux(d httpDeps) *http.ServeMux {
	w := d.World
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	})

	mux.HandleFunc("/debug/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.Metrics())
	})

	if d.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				RunID   string             `json:"run_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: w.ID(),
				RunID:   w.Config().RunID,
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, chunks, err := w.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick, "chunks": chunks})
		})
		mux.HandleFunc("/admin/v1/focus", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			var pos grid.Vec2
			if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&pos); err != nil {
				http.Error(rw, "bad focus: "+err.Error(), http.StatusBadRequest)
				return
			}
			if !w.SetFocus(pos) {
				http.Error(rw, "focus queue full", http.StatusServiceUnavailable)
				return
			}
			rw.WriteHeader(http.StatusAccepted)
		})

		obsSrv := observer.NewServer(w, d.Hub, nil)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	}
	if d.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// writeMetrics emits a minimal Prometheus exposition.
func writeMetrics(rw io.Writer, d httpDeps) {
	w := d.World
	id := w.ID()
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, id, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %d\n", name, id, v)
	}

	gauge("travelers_world_tick", "Current world tick.", tick)
	gauge("travelers_world_live_chunks", "Live chunk count.", m.LiveChunks)
	gauge("travelers_world_dirty_chunks", "Chunks whose edge ring is not fully resolved.", m.DirtyChunks)
	gauge("travelers_world_visible_chunks", "Chunks inside the render distance.", m.VisibleChunks)
	gauge("travelers_world_waiting_chunks", "Dirty chunks with no live edge neighbor.", m.Waiting)
	gauge("travelers_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	counter("travelers_chunks_spawned_total", "Chunks generated and spawned.", m.Totals.Spawned)
	counter("travelers_chunks_despawned_total", "Chunks despawned.", m.Totals.Despawned)
	counter("travelers_chunks_stitched_total", "Stitch passes applied.", m.Totals.Stitched)
	counter("travelers_contradictions_total", "Cells resolved with the fallback tile.", m.Totals.Contradictions)
	counter("travelers_chunk_failures_total", "Generate or stitch calls that failed.", m.Totals.Failures)

	fmt.Fprintf(rw, "# HELP travelers_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE travelers_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "travelers_world_queue_depth{world=%q,queue=%q} %d\n", id, "focus", m.QueueDepths.Focus)
	fmt.Fprintf(rw, "travelers_world_queue_depth{world=%q,queue=%q} %d\n", id, "admin", m.QueueDepths.Admin)

	if d.Hub != nil {
		hs := d.Hub.Stats()
		gauge("travelers_observer_sessions", "Connected observer sessions.", hs.Sessions)
		counter("travelers_observer_dropped_total", "Observer messages dropped on full queues.", hs.DropTotal)
	}
	if d.Index != nil {
		is := d.Index.Stats()
		gauge("travelers_index_queue_depth", "Index writer backlog.", is.QueueDepth)
		counter("travelers_index_dropped_total", "Index records dropped on a full queue.", is.DropTickTotal+is.DropSnapshotTotal)
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

func serve(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
