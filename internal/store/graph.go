package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/papapumpkin/critpath/internal/dag"
)

// LoadSnapshot reads the project's tasks and edges together with the
// generation they belong to, all from one read transaction.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, projectID string) (dag.Snapshot, uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dag.Snapshot{}, 0, fmt.Errorf("store: begin read tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	gen, err := generation(ctx, tx, projectID)
	if err != nil {
		return dag.Snapshot{}, 0, err
	}
	tasks, err := queryTasks(ctx, tx, projectID)
	if err != nil {
		return dag.Snapshot{}, 0, err
	}
	edges, err := queryEdges(ctx, tx, projectID)
	if err != nil {
		return dag.Snapshot{}, 0, err
	}
	return dag.Snapshot{Tasks: tasks, Edges: edges}, gen, nil
}

func queryTasks(ctx context.Context, tx *sql.Tx, projectID string) ([]dag.Task, error) {
	const q = `SELECT id, title, duration_days, earliest_start, priority, due_date
		FROM tasks WHERE project_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []dag.Task{}
	for rows.Next() {
		var (
			t    dag.Task
			es   sql.NullFloat64
			prio int
			due  sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.DurationDays, &es, &prio, &due); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		t.Priority = dag.Priority(prio)
		if es.Valid {
			v := es.Float64
			t.EarliestStart = &v
		}
		if due.Valid {
			d, err := time.Parse(time.RFC3339, due.String)
			if err != nil {
				return nil, fmt.Errorf("store: parse due date of %q: %w", t.ID, err)
			}
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate tasks: %w", err)
	}
	return tasks, nil
}

func queryEdges(ctx context.Context, tx *sql.Tx, projectID string) ([]dag.Edge, error) {
	const q = `SELECT id, predecessor, successor, type
		FROM dependencies WHERE project_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: query dependencies: %w", err)
	}
	defer rows.Close()

	edges := []dag.Edge{}
	for rows.Next() {
		var e dag.Edge
		var typ string
		if err := rows.Scan(&e.ID, &e.PredecessorID, &e.SuccessorID, &typ); err != nil {
			return nil, fmt.Errorf("store: scan dependency: %w", err)
		}
		if e.Type, err = dag.ParseDependencyType(typ); err != nil {
			return nil, fmt.Errorf("store: dependency %q: %w", e.ID, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dependencies: %w", err)
	}
	return edges, nil
}

// UpsertTask inserts or replaces a task, creating the project if needed.
func (s *SQLiteStore) UpsertTask(ctx context.Context, projectID string, t dag.Task) (uint64, error) {
	return s.withTx(ctx, "task upsert", func(tx *sql.Tx) (uint64, error) {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO projects (id) VALUES (?)", projectID); err != nil {
			return 0, fmt.Errorf("store: ensure project %q: %w", projectID, err)
		}
		gen, err := bump(ctx, tx, projectID, nil)
		if err != nil {
			return 0, err
		}
		return gen, upsertTask(ctx, tx, projectID, t)
	})
}

func upsertTask(ctx context.Context, tx *sql.Tx, projectID string, t dag.Task) error {
	const q = `
		INSERT INTO tasks (project_id, id, title, duration_days, earliest_start, priority, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, id) DO UPDATE SET
			title          = excluded.title,
			duration_days  = excluded.duration_days,
			earliest_start = excluded.earliest_start,
			priority       = excluded.priority,
			due_date       = excluded.due_date`
	var es sql.NullFloat64
	if t.EarliestStart != nil {
		es = sql.NullFloat64{Float64: *t.EarliestStart, Valid: true}
	}
	var due sql.NullString
	if t.DueDate != nil {
		due = sql.NullString{String: t.DueDate.UTC().Format(time.RFC3339), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, q, projectID, t.ID, t.Title, t.DurationDays, es, int(t.Priority), due); err != nil {
		return fmt.Errorf("store: upsert task %q: %w", t.ID, err)
	}
	return nil
}

// InsertEdge stores an edge that was validated against the project at
// generation validatedAt. If the project has moved on since, nothing is
// written and dag.ErrStaleSnapshot is returned. A content or ID collision is
// reported as dag.ErrDuplicateEdge.
func (s *SQLiteStore) InsertEdge(ctx context.Context, projectID string, validatedAt uint64, e dag.Edge) (uint64, error) {
	return s.withTx(ctx, "edge insert", func(tx *sql.Tx) (uint64, error) {
		gen, err := bump(ctx, tx, projectID, &validatedAt)
		if err != nil {
			return 0, err
		}
		return gen, insertEdge(ctx, tx, projectID, e)
	})
}

func insertEdge(ctx context.Context, tx *sql.Tx, projectID string, e dag.Edge) error {
	const q = `INSERT INTO dependencies (project_id, id, predecessor, successor, type) VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, projectID, e.ID, e.PredecessorID, e.SuccessorID, e.Type.String())
	if isConstraint(err, "UNIQUE") {
		return fmt.Errorf("store: %w: %s", dag.ErrDuplicateEdge, e)
	}
	if isConstraint(err, "FOREIGN KEY") {
		return fmt.Errorf("store: %w: %s", dag.ErrUnknownTask, e)
	}
	if err != nil {
		return fmt.Errorf("store: insert dependency %s: %w", e, err)
	}
	return nil
}

// DeleteEdge removes an edge by ID. Returns dag.ErrEdgeNotFound if the
// project has no such edge.
func (s *SQLiteStore) DeleteEdge(ctx context.Context, projectID, edgeID string) (uint64, error) {
	return s.withTx(ctx, "edge delete", func(tx *sql.Tx) (uint64, error) {
		gen, err := bump(ctx, tx, projectID, nil)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM dependencies WHERE project_id = ? AND id = ?", projectID, edgeID)
		if err != nil {
			return 0, fmt.Errorf("store: delete dependency %q: %w", edgeID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("store: %w: %s", dag.ErrEdgeNotFound, edgeID)
		}
		return gen, nil
	})
}

// ImportSnapshot replaces the project's tasks and edges with snap in a
// single transaction, creating the project if needed. The snapshot is
// expected to have passed dag.FromSnapshot already.
func (s *SQLiteStore) ImportSnapshot(ctx context.Context, projectID, name string, snap dag.Snapshot) (uint64, error) {
	return s.withTx(ctx, "import", func(tx *sql.Tx) (uint64, error) {
		const up = `INSERT INTO projects (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name`
		if _, err := tx.ExecContext(ctx, up, projectID, name); err != nil {
			return 0, fmt.Errorf("store: ensure project %q: %w", projectID, err)
		}
		gen, err := bump(ctx, tx, projectID, nil)
		if err != nil {
			return 0, err
		}
		for _, table := range []string{"dependencies", "tasks"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE project_id = ?", projectID); err != nil {
				return 0, fmt.Errorf("store: clear %s: %w", table, err)
			}
		}
		for _, t := range snap.Tasks {
			if err := upsertTask(ctx, tx, projectID, t); err != nil {
				return 0, err
			}
		}
		for _, e := range snap.Edges {
			if err := insertEdge(ctx, tx, projectID, e); err != nil {
				return 0, err
			}
		}
		return gen, nil
	})
}
