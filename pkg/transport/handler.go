package transport

import (
	"context"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// TaskRunner handles the single core operation the transport exposes: run a
// natural-language task through the Orchestrator's WRITE/EXECUTE/REPAIR loop
// to completion and return the final outcome. Both /run_task and
// /run_task_multipart map 1:1 to a single TaskRunner.RunTask call.
type TaskRunner interface {
	RunTask(ctx context.Context, t *task.Task) (*task.DonePayload, error)
}

// TaskRunnerFunc is an adapter that allows using an ordinary function as a
// TaskRunner.
type TaskRunnerFunc func(ctx context.Context, t *task.Task) (*task.DonePayload, error)

// RunTask calls f(ctx, t).
func (f TaskRunnerFunc) RunTask(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
	return f(ctx, t)
}
