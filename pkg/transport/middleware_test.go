package transport

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/neuroforge-dev/kernel/pkg/apierr"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next TaskRunner) TaskRunner {
			return TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
				order = append(order, name+":before")
				payload, err := next.RunTask(ctx, t)
				order = append(order, name+":after")
				return payload, err
			})
		}
	}

	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		order = append(order, "handler")
		return &task.DonePayload{}, nil
	})

	chain := Chain(mw("first"), mw("second"), mw("third"))
	wrapped := chain(handler)

	wrapped.RunTask(context.Background(), &task.Task{Text: "x"})

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		panic("test panic")
	})

	wrapped := Recovery()(handler)
	_, err := wrapped.RunTask(context.Background(), &task.Task{Text: "x"})

	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	apiErr, ok := err.(*apierr.APIError)
	if !ok {
		t.Fatalf("expected *apierr.APIError, got %T: %v", err, err)
	}
	if apiErr.Type != apierr.ErrorTypeServerError {
		t.Errorf("error type = %q, want %q", apiErr.Type, apierr.ErrorTypeServerError)
	}
	if !strings.Contains(apiErr.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", apiErr.Message, "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		return &task.DonePayload{}, nil
	})

	wrapped := Recovery()(handler)
	_, err := wrapped.RunTask(context.Background(), &task.Task{Text: "x"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string

	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		capturedID = RequestIDFromContext(ctx)
		return &task.DonePayload{}, nil
	})

	wrapped := RequestID()(handler)
	wrapped.RunTask(context.Background(), &task.Task{Text: "x"})

	if capturedID == "" {
		t.Error("expected a generated request ID, got empty string")
	}
	if len(capturedID) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("request ID length = %d, want 32 (hex encoded)", len(capturedID))
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string

	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		capturedID = RequestIDFromContext(ctx)
		return &task.DonePayload{}, nil
	})

	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	wrapped := RequestID()(handler)
	wrapped.RunTask(ctx, &task.Task{Text: "x"})

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		ids[RequestIDFromContext(ctx)] = true
		return &task.DonePayload{}, nil
	})

	wrapped := RequestID()(handler)
	for i := 0; i < 100; i++ {
		wrapped.RunTask(context.Background(), &task.Task{Text: "x"})
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		return &task.DonePayload{Language: task.Python, Attempts: 1, ExitCode: 0}, nil
	})

	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	wrapped := Logging(logger)(handler)
	wrapped.RunTask(ctx, &task.Task{Text: "print hello"})

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "language=python", "attempts=1", "run_task completed"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		return nil, apierr.NewServerError("test failure")
	})

	wrapped := Logging(logger)(handler)
	wrapped.RunTask(context.Background(), &task.Task{Text: "x"})

	output := buf.String()
	if !strings.Contains(output, "run_task failed") {
		t.Errorf("log output missing 'run_task failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}
