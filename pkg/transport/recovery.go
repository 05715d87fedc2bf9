package transport

import (
	"context"
	"fmt"

	"github.com/neuroforge-dev/kernel/pkg/apierr"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The server continues to
// accept new requests after a panic is recovered.
func Recovery() Middleware {
	return func(next TaskRunner) TaskRunner {
		return TaskRunnerFunc(func(ctx context.Context, t *task.Task) (payload *task.DonePayload, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					retErr = apierr.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.RunTask(ctx, t)
		})
	}
}
