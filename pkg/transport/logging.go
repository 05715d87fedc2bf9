package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// Logging returns middleware that emits structured log entries for each
// request. The log entry includes task text length, attempt count on
// success, duration, request ID (from context), and whether the run
// succeeded or failed.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next TaskRunner) TaskRunner {
		return TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			payload, err := next.RunTask(ctx, t)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.Int("task_len", len(t.Text)),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "run_task failed", attrs...)
			} else {
				attrs = append(attrs,
					slog.String("language", string(payload.Language)),
					slog.Int("attempts", payload.Attempts),
					slog.Int("exit_code", payload.ExitCode),
				)
				logger.LogAttrs(ctx, slog.LevelInfo, "run_task completed", attrs...)
			}

			return payload, err
		})
	}
}
