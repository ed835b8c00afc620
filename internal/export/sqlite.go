// Package export snapshots a run's proven deadlocks and per-level results
// into a SQLite database, so results from many runs against the same level
// set can be queried without re-running the search (SPEC_FULL.md's storage
// layer; grounded on the teacher's pkg/export/sqlite_export.go and
// internal/datasource/sqlite.go for DSN and schema conventions).
package export

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/sokodlex/internal/deadlock"
	"github.com/vanderheijden86/sokodlex/internal/grid"
)

// LevelResult is one level's outcome, ready to snapshot.
type LevelResult struct {
	LevelSet    string
	LevelIndex  int
	Width       int
	Height      int
	Solved      bool
	MoveCount   int
	Deadlocks   []*deadlock.Deadlock
	ElapsedSecs float64
}

// Snapshotter writes LevelResults to a SQLite database, creating it (and its
// schema) on first use.
type Snapshotter struct {
	db *sql.DB
}

// Open creates (or replaces) the SQLite database at path and prepares its
// schema.
func Open(path string) (*Snapshotter, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("export: remove existing database: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("export: open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("export: %s: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Snapshotter{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Snapshotter) Close() error { return s.db.Close() }

func createSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS levels (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	level_set TEXT NOT NULL,
	level_index INTEGER NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	solved INTEGER NOT NULL,
	move_count INTEGER NOT NULL,
	elapsed_secs REAL NOT NULL,
	PRIMARY KEY (run_id, level_set, level_index)
);

CREATE TABLE IF NOT EXISTS deadlocks (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	level_set TEXT NOT NULL,
	level_index INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	boxes TEXT NOT NULL,
	not_boxes TEXT NOT NULL,
	stack_index INTEGER NOT NULL,
	full_index INTEGER,
	PRIMARY KEY (run_id, level_set, level_index, seq)
);

CREATE INDEX IF NOT EXISTS idx_deadlocks_level ON deadlocks(level_set, level_index);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("export: create schema: %w", err)
	}
	return nil
}

// BeginRun inserts a new run row stamped with startedAt (callers supply the
// timestamp since this package must stay deterministic-callable from test
// code) and returns its id.
func (s *Snapshotter) BeginRun(startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO runs (started_at) VALUES (?)`, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("export: begin run: %w", err)
	}
	return res.LastInsertId()
}

// WriteLevel inserts one level's result and its proven deadlocks within a
// single transaction.
func (s *Snapshotter) WriteLevel(runID int64, r LevelResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("export: begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO levels (run_id, level_set, level_index, width, height, solved, move_count, elapsed_secs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.LevelSet, r.LevelIndex, r.Width, r.Height, boolToInt(r.Solved), r.MoveCount, r.ElapsedSecs,
	)
	if err != nil {
		return fmt.Errorf("export: insert level: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO deadlocks (run_id, level_set, level_index, seq, boxes, not_boxes, stack_index, full_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("export: prepare deadlock insert: %w", err)
	}
	defer stmt.Close()

	for i, dl := range r.Deadlocks {
		var fullIndex sql.NullInt64
		if dl.FullIndex != nil {
			fullIndex = sql.NullInt64{Int64: int64(*dl.FullIndex), Valid: true}
		}
		if _, err := stmt.Exec(
			runID, r.LevelSet, r.LevelIndex, i,
			joinPositions(dl.Boxes), joinPositions(dl.NotBoxes),
			dl.StackIndex, fullIndex,
		); err != nil {
			return fmt.Errorf("export: insert deadlock %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func joinPositions(positions []grid.Pos) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = fmt.Sprintf("%d,%d", p.Row, p.Col)
	}
	return strings.Join(parts, ";")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
