package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"travelers.ai/internal/persistence/snapshot"
	"travelers.ai/internal/sim/terrain/schematic"
	"travelers.ai/internal/sim/tuning"
	"travelers.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of tick reports, chunk
// lifecycles and snapshots. Writes are queued and applied by one goroutine;
// the compressed JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickReport
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick    uint64
	Path    string
	WorldID string
	Seed    int64
	Chunks  int
	Dirty   int
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			schematic_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS schematics (
			digest TEXT PRIMARY KEY,
			tiles INTEGER NOT NULL,
			fallback INTEGER NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			stitched INTEGER NOT NULL,
			despawned INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			contradictions INTEGER NOT NULL,
			live_chunks INTEGER NOT NULL,
			dirty_chunks INTEGER NOT NULL,
			step_ms REAL NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			digest TEXT,
			contradictions INTEGER NOT NULL,
			complete INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_events_pos ON chunk_events(x, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			dirty INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// WriteTick queues a tick report. It never blocks the world loop; reports
// are dropped when the writer falls behind.
func (s *SQLiteIndex) WriteTick(r world.TickReport) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: r}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:    snap.Header.Tick,
		Path:    path,
		WorldID: snap.Header.WorldID,
		Seed:    snap.Seed,
		Chunks:  len(snap.Chunks),
	}
	for _, ch := range snap.Chunks {
		if ch.Dirty {
			r.Dirty++
		}
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordRun stores the run's parameters and the schematic it was started
// with. It runs synchronously and is meant to be called once at startup.
func (s *SQLiteIndex) RecordRun(runID string, tune tuning.Tuning, schem *schematic.Schematic, rawSchematic []byte) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tuneJSON, err := json.Marshal(tune)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schematics(digest,tiles,fallback,json) VALUES(?,?,?,?)`,
		schem.Digest(), schem.Len(), int64(schem.FallbackID()), string(rawSchematic)); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,world_id,seed,schematic_digest,tuning_json,started_at) VALUES(?,?,?,?,?,?)`,
		runID, tune.WorldID, tune.Seed, schem.Digest(), string(tuneJSON), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,spawned,stitched,despawned,failed,contradictions,live_chunks,dirty_chunks,step_ms,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunk_events(run_id,tick,seq,kind,x,y,digest,contradictions,complete,error) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,world_id,seed,chunks,dirty) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertEvent, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if err := s.applyTick(tx, insertTick, insertEvent, r.tick, &opCount); err != nil {
				rollback()
				continue
			}
		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Tick), sn.Path, sn.WorldID, sn.Seed, sn.Chunks, sn.Dirty); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}

func (s *SQLiteIndex) applyTick(tx *sql.Tx, insertTick, insertEvent *sql.Stmt, t world.TickReport, opCount *int) error {
	if insertTick == nil || insertEvent == nil {
		return fmt.Errorf("index statements not prepared")
	}
	raw, _ := json.Marshal(t)
	if _, err := tx.Stmt(insertTick).Exec(
		t.RunID,
		int64(t.Tick),
		len(t.Spawned),
		len(t.Stitched),
		len(t.Despawned),
		len(t.Failed),
		t.Contradictions(),
		t.LiveChunks,
		t.DirtyChunks,
		t.StepMS,
		string(raw),
	); err != nil {
		return err
	}
	*opCount++

	ev := tx.Stmt(insertEvent)
	seq := 0
	exec := func(kind string, x, y int64, digest string, contradictions int, complete bool, errStr string) error {
		c := 0
		if complete {
			c = 1
		}
		_, err := ev.Exec(t.RunID, int64(t.Tick), seq, kind, x, y, digest, contradictions, c, errStr)
		seq++
		*opCount++
		return err
	}
	for _, sp := range t.Spawned {
		if err := exec("SPAWN", sp.Coord.X, sp.Coord.Y, sp.Digest, sp.Contradictions, false, ""); err != nil {
			return err
		}
	}
	for _, st := range t.Stitched {
		if err := exec("STITCH", st.Coord.X, st.Coord.Y, "", st.Contradictions, st.Complete, ""); err != nil {
			return err
		}
	}
	for _, f := range t.Failed {
		if err := exec("FAIL", f.Coord.X, f.Coord.Y, "", 0, false, f.Stage+": "+f.Error); err != nil {
			return err
		}
	}
	for _, c := range t.Despawned {
		if err := exec("DESPAWN", c.X, c.Y, "", 0, false, ""); err != nil {
			return err
		}
	}
	return nil
}
