// Package history keeps a SQLite ledger of pipeline runs so earlier demo
// runs can be listed without digging through output directories.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    started_at       TEXT NOT NULL,
    finished_at      TEXT NOT NULL,
    csv_file         TEXT NOT NULL,
    video_file       TEXT NOT NULL,
    output_dir       TEXT NOT NULL,
    strategy         TEXT NOT NULL,
    biosignal_count  INTEGER NOT NULL,
    visual_count     INTEGER NOT NULL,
    fused_count      INTEGER NOT NULL,
    stage_errors     INTEGER NOT NULL,
    elapsed_seconds  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_idx ON runs(started_at);
`

type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	CSVFile     string
	VideoFile   string
	OutputDir   string
	Strategy    string
	Biosignal   int
	Visual      int
	Fused       int
	StageErrors int
	Elapsed     time.Duration
}

type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file and schema when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, started_at, finished_at, csv_file, video_file, output_dir, strategy,
            biosignal_count, visual_count, fused_count, stage_errors, elapsed_seconds
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.CSVFile, r.VideoFile, r.OutputDir, r.Strategy,
		r.Biosignal, r.Visual, r.Fused, r.StageErrors,
		r.Elapsed.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// List returns the most recent runs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, csv_file, video_file, output_dir, strategy,
                biosignal_count, visual_count, fused_count, stage_errors, elapsed_seconds
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			elapsed           float64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.CSVFile, &r.VideoFile, &r.OutputDir, &r.Strategy,
			&r.Biosignal, &r.Visual, &r.Fused, &r.StageErrors, &elapsed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		r.Elapsed = time.Duration(elapsed * float64(time.Second))
		out = append(out, r)
	}
	return out, rows.Err()
}
