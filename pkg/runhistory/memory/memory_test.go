package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neuroforge-dev/kernel/pkg/runhistory"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

func makeRecord(id string, when time.Time) *runhistory.RunRecord {
	return &runhistory.RunRecord{
		ID:       id,
		TaskText: "print hello world",
		Result: &task.DonePayload{
			Language: task.Python,
			Attempts: 1,
			Stdout:   "hello world\n",
			ExitCode: 0,
		},
		CreatedAt: when,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := makeRecord("run_1", time.Now())
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get(ctx, "run_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TaskText != "print hello world" {
		t.Errorf("TaskText = %q, want %q", got.TaskText, "print hello world")
	}
	if got.Result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", got.Result.ExitCode)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(0)
	_, err := s.Get(context.Background(), "run_missing")
	if !errors.Is(err, runhistory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateSave(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := makeRecord("run_dup", time.Now())
	s.Save(ctx, rec)

	if err := s.Save(ctx, rec); !errors.Is(err, runhistory.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	base := time.Now()
	s.Save(ctx, makeRecord("run_a", base))
	s.Save(ctx, makeRecord("run_b", base.Add(time.Second)))
	s.Save(ctx, makeRecord("run_c", base.Add(2*time.Second)))

	recs, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len(recs) = %d, want 3", len(recs))
	}
	if recs[0].ID != "run_c" {
		t.Errorf("recs[0].ID = %q, want newest first (run_c)", recs[0].ID)
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List(limit=2) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestHealthCheck(t *testing.T) {
	s := New(0)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(3)
	ctx := context.Background()
	base := time.Now()

	s.Save(ctx, makeRecord("run_a", base))
	s.Save(ctx, makeRecord("run_b", base))
	s.Save(ctx, makeRecord("run_c", base))

	for _, id := range []string{"run_a", "run_b", "run_c"} {
		if _, err := s.Get(ctx, id); err != nil {
			t.Fatalf("expected %s to exist, got %v", id, err)
		}
	}

	s.Save(ctx, makeRecord("run_d", base))

	if _, err := s.Get(ctx, "run_a"); !errors.Is(err, runhistory.ErrNotFound) {
		t.Error("expected run_a to be evicted")
	}
	for _, id := range []string{"run_b", "run_c", "run_d"} {
		if _, err := s.Get(ctx, id); err != nil {
			t.Errorf("expected %s to exist after eviction, got %v", id, err)
		}
	}
}
