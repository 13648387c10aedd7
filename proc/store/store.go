// Package store persists compiled procedure plans so a procedure can
// resume later without recompiling, subject to the graph-hash check at
// execute time.
package store

import (
	"context"
	"errors"

	"github.com/chemtools/labproc/proc"
)

// ErrNotFound is returned when a requested plan id does not exist.
var ErrNotFound = errors.New("plan not found")

// Store persists compiled plans keyed by plan id.
//
// Implementations provided:
//   - MemStore: in-memory, for tests and single-process tools
//   - SQLiteStore: embedded file database (modernc.org/sqlite)
//   - MySQLStore: shared server database (go-sql-driver/mysql)
type Store interface {
	// SavePlan persists a plan. Saving an existing id overwrites it.
	SavePlan(ctx context.Context, plan *proc.Plan) error

	// LoadPlan retrieves a plan by id. ErrNotFound if absent.
	LoadPlan(ctx context.Context, id string) (*proc.Plan, error)

	// ListPlans returns summaries of every stored plan, newest first.
	ListPlans(ctx context.Context) ([]PlanInfo, error)

	// DeletePlan removes a plan. ErrNotFound if absent.
	DeletePlan(ctx context.Context, id string) error
}

// PlanInfo is the listing summary of one stored plan.
type PlanInfo struct {
	ID        string
	Procedure string
	GraphHash string
}
