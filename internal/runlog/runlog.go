// Package runlog records analysis runs and per-diagnostic outcomes in a
// SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Status is the state of a run or diagnostic entry.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Run is one invocation of the analysis over a set of config files.
type Run struct {
	ID          string     `json:"id"`
	Case        string     `json:"case"`
	ConfigFiles []string   `json:"config_files"`
	Generate    []string   `json:"generate"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Entry is the outcome of one diagnostic within a run.
type Entry struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Diagnostic  string     `json:"diagnostic"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Plots       []string   `json:"plots,omitempty"`
	Skipped     []string   `json:"skipped,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path in WAL mode.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "runlog: create %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id           TEXT PRIMARY KEY,
	casename     TEXT NOT NULL,
	config_files TEXT NOT NULL,
	generate     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	error        TEXT
);

CREATE TABLE IF NOT EXISTS diagnostic_runs (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES analysis_runs(id),
	diagnostic   TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	plots        TEXT,
	skipped      TEXT,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_started_at ON analysis_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_diagnostic_runs_run_id ON diagnostic_runs(run_id);
`

// Migrate creates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "runlog: migrate")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new running analysis run.
func (s *Store) StartRun(ctx context.Context, caseName string, configFiles, generate []string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	filesJSON, err := json.Marshal(configFiles)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: marshal config files")
	}
	genJSON, err := json.Marshal(generate)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: marshal generate")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, casename, config_files, generate, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, caseName, string(filesJSON), string(genJSON), string(StatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: insert run")
	}
	return &Run{
		ID:          id,
		Case:        caseName,
		ConfigFiles: configFiles,
		Generate:    generate,
		Status:      StatusRunning,
		StartedAt:   now,
	}, nil
}

// FinishRun marks a run complete, or failed when errMsg is not empty.
func (s *Store) FinishRun(ctx context.Context, runID, errMsg string) error {
	status := StatusComplete
	if errMsg != "" {
		status = StatusFailed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// StartDiagnostic records a running diagnostic and returns its entry ID.
func (s *Store) StartDiagnostic(ctx context.Context, runID, name string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagnostic_runs (id, run_id, diagnostic, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(StatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s for run %s", name, runID)
	}
	return id, nil
}

// CompleteDiagnostic marks an entry complete with the plots it wrote and
// the comparisons it skipped.
func (s *Store) CompleteDiagnostic(ctx context.Context, entryID string, plots, skipped []string) error {
	plotsJSON, err := json.Marshal(plots)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal plots")
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal skipped")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE diagnostic_runs SET status = ?, completed_at = ?, plots = ?, skipped = ? WHERE id = ?`,
		string(StatusComplete), time.Now().UTC(), string(plotsJSON), string(skippedJSON), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete diagnostic %s", entryID)
	}
	return checkRowsAffected(res, "diagnostic", entryID)
}

// FailDiagnostic marks an entry failed.
func (s *Store) FailDiagnostic(ctx context.Context, entryID, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE diagnostic_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(StatusFailed), time.Now().UTC(), errMsg, entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail diagnostic %s", entryID)
	}
	return checkRowsAffected(res, "diagnostic", entryID)
}

// ListRuns returns the most recent runs first, at most limit (100 when
// limit <= 0).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, casename, config_files, generate, status, started_at, completed_at, error
		 FROM analysis_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: list runs iterate")
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, casename, config_files, generate, status, started_at, completed_at, error
		 FROM analysis_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

// Entries returns the diagnostic entries of a run in start order.
func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, diagnostic, status, started_at, completed_at, plots, skipped, error
		 FROM diagnostic_runs WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: list entries for %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		var e Entry
		var completed sql.NullTime
		var plots, skipped, errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Diagnostic, &e.Status, &e.StartedAt, &completed, &plots, &skipped, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if completed.Valid {
			t := completed.Time
			e.CompletedAt = &t
		}
		if plots.Valid {
			_ = json.Unmarshal([]byte(plots.String), &e.Plots)
		}
		if skipped.Valid {
			_ = json.Unmarshal([]byte(skipped.String), &e.Skipped)
		}
		e.Error = errStr.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "runlog: list entries iterate")
}

// helpers

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: %s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// ErrNotFound is returned by GetRun for an unknown ID.
var ErrNotFound = eris.New("runlog: run not found")

func scanRun(row scannable) (*Run, error) {
	var r Run
	var filesJSON, genJSON string
	var completed sql.NullTime
	var errStr sql.NullString

	err := row.Scan(&r.ID, &r.Case, &filesJSON, &genJSON, &r.Status, &r.StartedAt, &completed, &errStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "runlog: scan run")
	}
	if err := json.Unmarshal([]byte(filesJSON), &r.ConfigFiles); err != nil {
		return nil, eris.Wrap(err, "runlog: unmarshal config files")
	}
	if err := json.Unmarshal([]byte(genJSON), &r.Generate); err != nil {
		return nil, eris.Wrap(err, "runlog: unmarshal generate")
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	r.Error = errStr.String
	return &r, nil
}
