package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS generation_runs (
	run_id       TEXT PRIMARY KEY,
	split        TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	templates    TEXT NOT NULL,
	config_json  TEXT,
	status       TEXT NOT NULL,
	questions    INTEGER NOT NULL DEFAULT 0,
	started_at   TEXT NOT NULL,
	finished_at  TEXT,
	error        TEXT
);

CREATE TABLE IF NOT EXISTS run_files (
	run_id       TEXT NOT NULL,
	class        TEXT NOT NULL,
	path         TEXT NOT NULL,
	questions    INTEGER NOT NULL,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	PRIMARY KEY (run_id, class),
	FOREIGN KEY (run_id) REFERENCES generation_runs(run_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	template_class TEXT NOT NULL,
	template_index INTEGER NOT NULL,
	group_type     TEXT NOT NULL,
	group_index    INTEGER NOT NULL,
	question       TEXT NOT NULL,
	answers_json   TEXT,
	decision       TEXT NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES generation_runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store is the SQLite run ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Generation workers share this handle; one connection serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for the group cache, outcome memory and
// provenance log.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region start-run
// StartRun records a new running run and returns it with a fresh run ID.
func (s *Store) StartRun(split string, seed uint64, templates []string, configJSON string) (RunRecord, error) {
	if templates == nil {
		templates = []string{}
	}
	rec := RunRecord{
		RunID:      uuid.New().String(),
		Split:      split,
		Seed:       seed,
		Templates:  templates,
		ConfigJSON: configJSON,
		Status:     RunRunning,
		StartedAt:  s.now(),
	}
	tplJSON, err := json.Marshal(templates)
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal templates: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO generation_runs (run_id, split, seed, templates, config_json, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, split, int64(seed), string(tplJSON), nullIfEmpty(configJSON),
		string(RunRunning), rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// #endregion start-run

// #region record-file
// RecordFile stores the result of one template file and adds its questions
// to the run total, atomically.
func (s *Store) RecordFile(f RunFile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	failed := 0
	if f.Failed {
		failed = 1
	}
	_, err = tx.Exec(
		`INSERT INTO run_files (run_id, class, path, questions, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Class, f.Path, f.Questions, failed, nullIfEmpty(f.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run file: %w", err)
	}
	_, err = tx.Exec(
		`UPDATE generation_runs SET questions = questions + ? WHERE run_id = ?`,
		f.Questions, f.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run total: %w", err)
	}
	return tx.Commit()
}

// #endregion record-file

// #region finish-run
// FinishRun marks a run completed, or failed when runErr is non-nil.
func (s *Store) FinishRun(runID string, runErr error) error {
	status, msg := RunCompleted, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := s.db.Exec(
		`UPDATE generation_runs SET status = ?, finished_at = ?, error = ? WHERE run_id = ?`,
		string(status), s.now().Format(time.RFC3339Nano), nullIfEmpty(msg), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// #endregion finish-run

// #region get-run
// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT run_id, split, seed, templates, config_json, status, questions, started_at, finished_at, error
		 FROM generation_runs WHERE run_id = ?`, runID,
	)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, split, seed, templates, config_json, status, questions, started_at, finished_at, error
		 FROM generation_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListFiles returns the files written by a run, ordered by class.
func (s *Store) ListFiles(runID string) ([]RunFile, error) {
	rows, err := s.db.Query(
		`SELECT run_id, class, path, questions, failed, error
		 FROM run_files WHERE run_id = ? ORDER BY class`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		var failed int
		var msg sql.NullString
		if err := rows.Scan(&f.RunID, &f.Class, &f.Path, &f.Questions, &failed, &msg); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		f.Failed = failed == 1
		f.Error = msg.String
		files = append(files, f)
	}
	return files, rows.Err()
}

// #endregion list-runs

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var rec RunRecord
	var seed int64
	var tplJSON, status, startedStr string
	var configJSON, finishedStr, msg sql.NullString
	if err := sc.Scan(&rec.RunID, &rec.Split, &seed, &tplJSON, &configJSON, &status,
		&rec.Questions, &startedStr, &finishedStr, &msg); err != nil {
		return RunRecord{}, err
	}
	rec.Seed = uint64(seed)
	rec.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(tplJSON), &rec.Templates); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal templates: %w", err)
	}
	rec.ConfigJSON = configJSON.String
	rec.Error = msg.String
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
