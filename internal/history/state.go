// Package history records stageload runs in a local SQLite database.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	data_dir     TEXT NOT NULL,
	status       TEXT NOT NULL,
	csv_rows     INTEGER NOT NULL DEFAULT 0,
	json_rows    INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS run_loads (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	table_name TEXT NOT NULL,
	rows       INTEGER NOT NULL,
	loaded_at  TEXT NOT NULL,
	PRIMARY KEY (run_id, table_name)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// State is the SQLite-backed history store.
type State struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*State, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &State{db: db, now: time.Now}, nil
}

// StartRun records a new running run and returns its ID.
func (s *State) StartRun(dataDir string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, data_dir, status) VALUES (?, ?, ?, ?)`,
		id, s.now().UTC().Format(timeLayout), dataDir, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// RecordCollect stores the aggregate row counts of a run.
func (s *State) RecordCollect(runID string, csvRows, jsonRows int64) error {
	return s.update(`UPDATE runs SET csv_rows = ?, json_rows = ? WHERE id = ?`, runID, csvRows, jsonRows, runID)
}

// RecordLoad stores the rows written to one destination table.
func (s *State) RecordLoad(runID, table string, rows int64) error {
	_, err := s.db.Exec(`
		INSERT INTO run_loads (run_id, table_name, rows, loaded_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id, table_name) DO UPDATE SET rows = excluded.rows, loaded_at = excluded.loaded_at
	`, runID, table, rows, s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording load of %s: %w", table, err)
	}
	return nil
}

// CompleteRun marks a run finished with the given status.
func (s *State) CompleteRun(runID, status, errorMsg string) error {
	return s.update(`UPDATE runs SET completed_at = ?, status = ?, error = ? WHERE id = ?`,
		runID, s.now().UTC().Format(timeLayout), status, errorMsg, runID)
}

func (s *State) update(query, runID string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// every run.
func (s *State) ListRuns(limit int) ([]Run, error) {
	query := `SELECT id, started_at, completed_at, data_dir, status, csv_rows, json_rows, error
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Loads, err = s.loads(runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *State) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT id, started_at, completed_at, data_dir, status, csv_rows, json_rows, error
		FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}
	if r.Loads, err = s.loads(runID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *State) loads(runID string) (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT table_name, rows FROM run_loads WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading loads of run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r         Run
		started   string
		completed sql.NullString
	)
	if err := sc.Scan(&r.ID, &started, &completed, &r.DataDir, &r.Status, &r.CSVRows, &r.JSONRows, &r.Error); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("run %s: parsing start time: %w", r.ID, err)
	}
	r.StartedAt = t
	if completed.Valid {
		t, err := time.Parse(timeLayout, completed.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: parsing completion time: %w", r.ID, err)
		}
		r.CompletedAt = &t
	}
	return &r, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}
