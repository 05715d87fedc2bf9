// Package runhistory provides optional persistence of completed
// Orchestrator runs, giving operators an audit trail of what was
// generated, run, and
// repaired without changing the core WRITE/EXECUTE/REPAIR loop.
package runhistory

import (
	"context"
	"time"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// RunRecord captures the outcome of a single Orchestrator.Run call.
type RunRecord struct {
	ID        string
	TaskText  string
	Result    *task.DonePayload
	Err       string
	CreatedAt time.Time
}

// Store persists and retrieves RunRecords. Implementations: memory
// (in-process LRU) and postgres (pgx/v5-backed).
type Store interface {
	Save(ctx context.Context, rec *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	List(ctx context.Context, limit int) ([]*RunRecord, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
