package stageexec

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"clipdub/internal/notifications"
	"clipdub/internal/queue"
	"clipdub/internal/services"
	"clipdub/internal/testsupport"
)

type fakeHandler struct {
	prepareErr error
	executeErr error
	execute    func(*queue.Task)
}

func (h *fakeHandler) Prepare(ctx context.Context, task *queue.Task) error {
	return h.prepareErr
}

func (h *fakeHandler) Execute(ctx context.Context, task *queue.Task) error {
	if h.execute != nil {
		h.execute(task)
	}
	return h.executeErr
}

type recordingNotifier struct {
	mu       sync.Mutex
	progress []string
	failures []string
}

func (n *recordingNotifier) NotifyCompleted(context.Context, *queue.Task) error { return nil }

func (n *recordingNotifier) NotifyFailed(ctx context.Context, task *queue.Task, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, reason)
	return nil
}

func (n *recordingNotifier) PublishProgress(chatID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, text)
}

func (n *recordingNotifier) Close() {}

var _ notifications.Service = (*recordingNotifier)(nil)

func TestRunPersistsProgressAndArtifacts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	task := testsupport.NewURLTask(t, store, 777, "https://youtube.com/watch?v=abc")
	notifier := &recordingNotifier{}

	err := Run(context.Background(), Options{
		Store:     store,
		Notifier:  notifier,
		StageName: "fetch",
		Progress:  "Downloading video...",
		Task:      task,
		Handler: &fakeHandler{execute: func(task *queue.Task) {
			task.InputFile = "/work/task_1/input.mp4"
			task.Platform = "youtube"
		}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.InputFile != "/work/task_1/input.mp4" || stored.Platform != "youtube" {
		t.Fatalf("artifacts not persisted: %+v", stored)
	}
	if stored.ProgressStage != "fetch" {
		t.Fatalf("progress stage not recorded: %q", stored.ProgressStage)
	}
	if len(notifier.progress) != 1 || notifier.progress[0] != "Downloading video..." {
		t.Fatalf("progress update missing: %+v", notifier.progress)
	}
}

func TestRunUserFacingFailure(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	task := testsupport.NewURLTask(t, store, 777, "https://youtube.com/watch?v=abc")
	notifier := &recordingNotifier{}

	stageErr := services.Wrap(services.ErrRestricted, "fetch", "download",
		"the video is unavailable for anonymous viewing", nil)
	err := Run(context.Background(), Options{
		Store:     store,
		Notifier:  notifier,
		StageName: "fetch",
		Task:      task,
		Handler:   &fakeHandler{executeErr: stageErr},
	})
	if !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("stage error must propagate, got %v", err)
	}

	stored, _ := store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("task not failed: %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "anonymous viewing") {
		t.Fatalf("user-facing reason not stored: %q", stored.ErrorMessage)
	}
	if len(notifier.failures) != 1 || !strings.Contains(notifier.failures[0], "anonymous viewing") {
		t.Fatalf("failure notification missing: %+v", notifier.failures)
	}
}

func TestRunExternalToolFailureStoresDetail(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	task := testsupport.NewURLTask(t, store, 777, "https://youtube.com/watch?v=abc")
	notifier := &recordingNotifier{}

	stageErr := services.Wrap(services.ErrExternalTool, "compose", "encode",
		"ffmpeg exited with status 1: Invalid data found when processing input", nil)
	err := Run(context.Background(), Options{
		Store:     store,
		Notifier:  notifier,
		StageName: "compose",
		Task:      task,
		Handler:   &fakeHandler{executeErr: stageErr},
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("stage error must propagate, got %v", err)
	}

	stored, _ := store.GetByID(context.Background(), task.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("task not failed: %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "ffmpeg exited with status 1") ||
		!strings.Contains(stored.ErrorMessage, "Invalid data found") {
		t.Fatalf("captured tool output missing from stored reason: %q", stored.ErrorMessage)
	}
	if strings.HasPrefix(stored.ErrorMessage, services.ErrExternalTool.Error()) {
		t.Fatalf("sentinel prefix must be stripped: %q", stored.ErrorMessage)
	}
	if len(notifier.failures) != 1 || !strings.Contains(notifier.failures[0], "ffmpeg exited with status 1") {
		t.Fatalf("failure notification must carry the detail: %+v", notifier.failures)
	}
}

func TestRunPrepareFailureSkipsExecute(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	task := testsupport.NewURLTask(t, store, 777, "https://youtube.com/watch?v=abc")

	executed := false
	err := Run(context.Background(), Options{
		Store:     store,
		StageName: "voice",
		Task:      task,
		Handler: &fakeHandler{
			prepareErr: services.Wrap(services.ErrConfiguration, "voice", "prepare", "voices directory missing", nil),
			execute:    func(*queue.Task) { executed = true },
		},
	})
	if err == nil {
		t.Fatal("expected prepare error")
	}
	if executed {
		t.Fatal("execute must not run after prepare fails")
	}
}
