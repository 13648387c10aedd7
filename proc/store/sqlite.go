package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chemtools/labproc/proc"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// SQLiteStore persists plans in an embedded SQLite database. Plans are
// stored as JSON blobs keyed by id, with the procedure name and graph
// hash denormalized for listing without deserialization.
//
// Usage:
//
//	st, err := store.NewSQLiteStore("plans.db")
//	if err != nil { ... }
//	defer st.Close()
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
// Pass ":memory:" for an in-process throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS plans (
			id         TEXT PRIMARY KEY,
			procedure  TEXT NOT NULL,
			graph_hash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			body       BLOB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating plans table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SavePlan implements Store.
func (s *SQLiteStore) SavePlan(ctx context.Context, plan *proc.Plan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("serializing plan %s: %w", plan.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, procedure, graph_hash, created_at, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			procedure = excluded.procedure,
			graph_hash = excluded.graph_hash,
			created_at = excluded.created_at,
			body = excluded.body`,
		plan.ID, plan.Procedure, plan.GraphHash,
		plan.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"), raw)
	if err != nil {
		return fmt.Errorf("saving plan %s: %w", plan.ID, err)
	}
	return nil
}

// LoadPlan implements Store.
func (s *SQLiteStore) LoadPlan(ctx context.Context, id string) (*proc.Plan, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM plans WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", id, err)
	}
	var plan proc.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("deserializing plan %s: %w", id, err)
	}
	return &plan, nil
}

// ListPlans implements Store.
func (s *SQLiteStore) ListPlans(ctx context.Context) ([]PlanInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, procedure, graph_hash FROM plans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()
	var out []PlanInfo
	for rows.Next() {
		var info PlanInfo
		if err := rows.Scan(&info.ID, &info.Procedure, &info.GraphHash); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeletePlan implements Store.
func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting plan %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
