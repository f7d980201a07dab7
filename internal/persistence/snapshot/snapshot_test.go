package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots", FileName(42))
	in := SnapshotV1{
		Header:          Header{WorldID: "w1", Tick: 42},
		Seed:            7,
		ChunkTileLength: 2,
		Chunks: []ChunkV1{{
			X: -9, Y: 18, Side: 2,
			Interior:    []uint16{1, 2, 3, 0},
			InteriorSet: []bool{true, true, true, false},
			Ring:        make([]uint16, 12),
			RingSet:     make([]bool, 12),
			Dirty:       true,
		}},
		Counters: CountersV1{Spawned: 3},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Header.Version != Version || out.Header.Tick != 42 || out.Header.WorldID != "w1" {
		t.Fatalf("header: %+v", out.Header)
	}
	if len(out.Chunks) != 1 || out.Chunks[0].X != -9 || out.Chunks[0].Interior[2] != 3 || out.Chunks[0].InteriorSet[3] {
		t.Fatalf("chunks: %+v", out.Chunks)
	}
	if out.Counters.Spawned != 3 {
		t.Fatalf("counters: %+v", out.Counters)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("expected no snapshot in empty dir")
	}
	for _, name := range []string{FileName(5), FileName(120), FileName(30), "junk.snap.zst", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := Latest(dir); got != filepath.Join(dir, FileName(120)) {
		t.Fatalf("Latest: %s", got)
	}
}
