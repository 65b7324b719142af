// Package store persists projects, tasks and dependency edges in SQLite.
// Every mutation bumps the project's generation counter in the same
// transaction, so readers can tell whether a cached analysis is stale and
// writers can refuse an edge validated against an older generation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/critpath/internal/dag"
)

// ErrProjectNotFound is returned when an operation names a project that has
// never been created.
var ErrProjectNotFound = errors.New("project not found")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    generation INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    project_id     TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    id             TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    duration_days  REAL NOT NULL DEFAULT 0,
    earliest_start REAL,
    priority       INTEGER NOT NULL DEFAULT 0,
    due_date       TEXT,
    PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS dependencies (
    project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    id          TEXT NOT NULL,
    predecessor TEXT NOT NULL,
    successor   TEXT NOT NULL,
    type        TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_id, id),
    UNIQUE (project_id, predecessor, successor, type),
    FOREIGN KEY (project_id, predecessor) REFERENCES tasks(project_id, id) ON DELETE CASCADE,
    FOREIGN KEY (project_id, successor) REFERENCES tasks(project_id, id) ON DELETE CASCADE
);
`

// Project describes a stored project.
type Project struct {
	ID         string
	Name       string
	Generation uint64
	CreatedAt  time.Time
}

// SQLiteStore is the SQLite-backed task directory and edge store.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath, enables WAL mode,
// busy timeout and foreign keys, and creates the schema if it does not exist.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite only supports a single writer; one connection also keeps the
	// per-connection PRAGMAs below in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProject registers a project. Creating an existing project updates
// its name and leaves its contents and generation alone.
func (s *SQLiteStore) CreateProject(ctx context.Context, id, name string) error {
	const q = `
		INSERT INTO projects (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`
	if _, err := s.db.ExecContext(ctx, q, id, name); err != nil {
		return fmt.Errorf("store: create project %q: %w", id, err)
	}
	return nil
}

// Projects lists every stored project ordered by ID.
func (s *SQLiteStore) Projects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, generation, created_at FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: query projects: %w", err)
	}
	defer rows.Close()

	var result []Project
	for rows.Next() {
		var p Project
		var ts string
		if err := rows.Scan(&p.ID, &p.Name, &p.Generation, &ts); err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		if p.CreatedAt, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("store: parse project timestamp: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate projects: %w", err)
	}
	return result, nil
}

// Generation returns the project's current generation counter.
func (s *SQLiteStore) Generation(ctx context.Context, projectID string) (uint64, error) {
	return generation(ctx, s.db, projectID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func generation(ctx context.Context, q querier, projectID string) (uint64, error) {
	var gen uint64
	err := q.QueryRowContext(ctx, "SELECT generation FROM projects WHERE id = ?", projectID).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: %w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return 0, fmt.Errorf("store: read generation of %q: %w", projectID, err)
	}
	return gen, nil
}

// bump increments the project's generation inside tx and returns the new
// value. With a non-nil expected the increment only happens while the
// generation still equals *expected; otherwise dag.ErrStaleSnapshot is
// returned. Callers bump before any other write so the transaction takes
// SQLite's write lock before it reads anything.
func bump(ctx context.Context, tx *sql.Tx, projectID string, expected *uint64) (uint64, error) {
	q := "UPDATE projects SET generation = generation + 1 WHERE id = ?"
	args := []any{projectID}
	if expected != nil {
		q += " AND generation = ?"
		args = append(args, *expected)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("store: bump generation of %q: %w", projectID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		cur, err := generation(ctx, tx, projectID)
		if err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("store: %w: %s at generation %d, validated at %d",
			dag.ErrStaleSnapshot, projectID, cur, *expected)
	}
	return generation(ctx, tx, projectID)
}

// withTx runs fn inside a transaction and commits. fn returns the project's
// new generation.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) (uint64, error)) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx for %s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	gen, err := fn(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit %s: %w", op, err)
	}
	return gen, nil
}

// isConstraint reports whether err is a SQLite constraint failure of the
// given kind ("UNIQUE", "FOREIGN KEY"). PRIMARY KEY collisions report as
// UNIQUE.
func isConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}

// timestampFormats lists the formats SQLite drivers may produce for
// CURRENT_TIMESTAMP.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

// parseTimestamp attempts to parse a SQLite timestamp string using known formats.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
