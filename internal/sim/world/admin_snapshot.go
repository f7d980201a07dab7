package world

import (
	"context"
	"errors"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick   uint64
	Chunks int
	Err    error
}

var (
	ErrSnapshotUnavailable = errors.New("snapshot sink not configured")
	ErrSnapshotBusy        = errors.New("snapshot sink backpressure")
)

// RequestSnapshot asks the loop goroutine to export the chunks as of the last
// completed tick. Safe to call from HTTP handlers.
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, chunks int, err error) {
	if w == nil || w.admin == nil {
		return 0, 0, ErrSnapshotUnavailable
	}
	resp := make(chan adminSnapshotResp, 1)

	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}

	select {
	case r := <-resp:
		return r.Tick, r.Chunks, r.Err
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	snapTick := w.tick.Load()
	if snapTick > 0 {
		snapTick--
	}

	resp := adminSnapshotResp{Tick: snapTick}
	if w.snapshotSink == nil {
		resp.Err = ErrSnapshotUnavailable
	} else {
		snap := w.ExportSnapshot(snapTick)
		resp.Chunks = len(snap.Chunks)
		select {
		case w.snapshotSink <- snap:
		default:
			resp.Err = ErrSnapshotBusy
		}
	}

	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
		}
	}
}
