package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type queryOpts struct {
	RunID string
	Limit int
	X, Y  int64
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id filter (ticks, contradictions)")
	limit := fs.Int("limit", 20, "result limit")
	x := fs.Int64("x", 0, "chunk coordinate x (chunk)")
	y := fs.Int64("y", 0, "chunk coordinate y (chunk)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := queryOpts{RunID: strings.TrimSpace(*runID), Limit: *limit, X: *x, Y: *y}
	if err := runQuery(db, q, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-run RUN] [-x X -y Y] snapshots|runs|ticks|contradictions|chunk")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// runQuery prints one JSON object per result row.
func runQuery(db *sql.DB, q string, o queryOpts, out io.Writer) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	switch q {
	case "snapshots":
		return printRows(db, out, `SELECT tick,path,world_id,seed,chunks,dirty FROM snapshots ORDER BY tick DESC LIMIT ?`,
			[]string{"tick", "path", "world_id", "seed", "chunks", "dirty"}, o.Limit)
	case "runs":
		return printRows(db, out, `SELECT run_id,world_id,seed,schematic_digest,started_at FROM runs ORDER BY started_at DESC LIMIT ?`,
			[]string{"run_id", "world_id", "seed", "schematic_digest", "started_at"}, o.Limit)
	case "ticks":
		return printRows(db, out, `SELECT run_id,tick,spawned,stitched,despawned,failed,contradictions,live_chunks,dirty_chunks,step_ms FROM ticks WHERE (?='' OR run_id=?) ORDER BY tick DESC LIMIT ?`,
			[]string{"run_id", "tick", "spawned", "stitched", "despawned", "failed", "contradictions", "live_chunks", "dirty_chunks", "step_ms"}, o.RunID, o.RunID, o.Limit)
	case "contradictions":
		return printRows(db, out, `SELECT run_id,tick,kind,x,y,contradictions FROM chunk_events WHERE contradictions>0 AND (?='' OR run_id=?) ORDER BY tick DESC, seq LIMIT ?`,
			[]string{"run_id", "tick", "kind", "x", "y", "contradictions"}, o.RunID, o.RunID, o.Limit)
	case "chunk":
		return printRows(db, out, `SELECT run_id,tick,kind,digest,contradictions,complete,error FROM chunk_events WHERE x=? AND y=? ORDER BY tick, seq LIMIT ?`,
			[]string{"run_id", "tick", "kind", "digest", "contradictions", "complete", "error"}, o.X, o.Y, o.Limit)
	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func printRows(db *sql.DB, out io.Writer, query string, cols []string, args ...any) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		printJSON(out, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
