// Package storage manages per-task scratch directories and their
// scheduled cleanup.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"clipdub/internal/config"
	"clipdub/internal/logging"
)

// Workspaces hands out per-task scratch directories under the work dir.
type Workspaces struct {
	root   string
	logger *slog.Logger
}

// NewWorkspaces builds a workspace manager rooted at the configured work
// directory.
func NewWorkspaces(cfg *config.Config, logger *slog.Logger) *Workspaces {
	return &Workspaces{
		root:   cfg.Paths.WorkDir,
		logger: logging.NewComponentLogger(logger, "storage"),
	}
}

// TaskDir returns the scratch directory path for a task.
func (w *Workspaces) TaskDir(taskID int64) string {
	return filepath.Join(w.root, fmt.Sprintf("task_%d", taskID))
}

// Create makes the scratch directory for a task and returns its path.
func (w *Workspaces) Create(taskID int64) (string, error) {
	dir := w.TaskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task workspace: %w", err)
	}
	return dir, nil
}

// Remove deletes a task's scratch directory and everything in it.
func (w *Workspaces) Remove(taskID int64) error {
	dir := w.TaskDir(taskID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove task workspace: %w", err)
	}
	return nil
}

// Exists reports whether a task still has a scratch directory.
func (w *Workspaces) Exists(taskID int64) bool {
	info, err := os.Stat(w.TaskDir(taskID))
	return err == nil && info.IsDir()
}
