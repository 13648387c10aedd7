package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chemtools/labproc/proc"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists plans in a shared MySQL database, for labs where
// several workstations draw from one plan library. Schema mirrors
// SQLiteStore.
//
// The DSN must enable parseTime, e.g.
// "user:pass@tcp(host:3306)/labproc?parseTime=true".
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to the database and ensures the schema.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	s := &MySQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS plans (
			id         VARCHAR(64) PRIMARY KEY,
			procedure_name VARCHAR(255) NOT NULL,
			graph_hash CHAR(64) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			body       MEDIUMBLOB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating plans table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// SavePlan implements Store.
func (s *MySQLStore) SavePlan(ctx context.Context, plan *proc.Plan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("serializing plan %s: %w", plan.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, procedure_name, graph_hash, created_at, body)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			procedure_name = VALUES(procedure_name),
			graph_hash = VALUES(graph_hash),
			created_at = VALUES(created_at),
			body = VALUES(body)`,
		plan.ID, plan.Procedure, plan.GraphHash, plan.CreatedAt, raw)
	if err != nil {
		return fmt.Errorf("saving plan %s: %w", plan.ID, err)
	}
	return nil
}

// LoadPlan implements Store.
func (s *MySQLStore) LoadPlan(ctx context.Context, id string) (*proc.Plan, error) {
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
func (s *MySQLStore) ListPlans(ctx context.Context) ([]PlanInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, procedure_name, graph_hash FROM plans ORDER BY created_at DESC`)
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
func (s *MySQLStore) DeletePlan(ctx context.Context, id string) error {
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
