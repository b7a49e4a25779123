package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipdub/internal/queue"
	"clipdub/internal/testsupport"
)

func TestWorkspaceLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	spaces := NewWorkspaces(cfg, nil)

	dir, err := spaces.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if filepath.Base(dir) != "task_7" {
		t.Fatalf("unexpected workspace name %q", dir)
	}
	if !spaces.Exists(7) {
		t.Fatal("workspace should exist after Create")
	}
	if err := os.WriteFile(filepath.Join(dir, "input.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write scratch file: %v", err)
	}

	if err := spaces.Remove(7); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if spaces.Exists(7) {
		t.Fatal("workspace should be gone after Remove")
	}
}

func finishTask(t *testing.T, store *queue.Store, task *queue.Task, completedAt time.Time) {
	t.Helper()
	task.Status = queue.StatusCompleted
	task.CompletedAt = &completedAt
	if err := store.Update(context.Background(), task); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestSweepRemovesOnlyExpiredWorkspaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.MaxAgeHours = 24
	store := testsupport.MustOpenStore(t, cfg)
	spaces := NewWorkspaces(cfg, nil)
	sweeper := NewSweeper(cfg, nil, store, spaces)

	old := testsupport.NewURLTask(t, store, 1, "https://youtube.com/watch?v=old")
	fresh := testsupport.NewURLTask(t, store, 1, "https://youtube.com/watch?v=new")
	active := testsupport.NewURLTask(t, store, 1, "https://youtube.com/watch?v=run")

	finishTask(t, store, old, time.Now().Add(-48*time.Hour))
	finishTask(t, store, fresh, time.Now().Add(-time.Hour))

	for _, task := range []*queue.Task{old, fresh, active} {
		if _, err := spaces.Create(task.ID); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	removed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one workspace removed, got %d", removed)
	}
	if spaces.Exists(old.ID) {
		t.Fatal("expired workspace survived the sweep")
	}
	if !spaces.Exists(fresh.ID) || !spaces.Exists(active.ID) {
		t.Fatal("recent or active workspaces must survive the sweep")
	}
}

func TestSweepDisabledByZeroMaxAge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.MaxAgeHours = 0
	store := testsupport.MustOpenStore(t, cfg)
	spaces := NewWorkspaces(cfg, nil)
	sweeper := NewSweeper(cfg, nil, store, spaces)

	task := testsupport.NewURLTask(t, store, 1, "https://youtube.com/watch?v=x")
	finishTask(t, store, task, time.Now().Add(-100*time.Hour))
	if _, err := spaces.Create(task.ID); err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 || !spaces.Exists(task.ID) {
		t.Fatal("zero max age must disable the sweep")
	}
}
