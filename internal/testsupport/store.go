package testsupport

import (
	"context"
	"testing"

	"clipdub/internal/config"
	"clipdub/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewURLTask creates a new URL-sourced task for tests using the provided store.
func NewURLTask(t testing.TB, store *queue.Store, chatID int64, url string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), queue.NewTaskParams{
		ChatID:    chatID,
		InputKind: queue.InputURL,
		InputURL:  url,
		Options: queue.Options{
			GenerateSubtitles: true,
		},
	})
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
