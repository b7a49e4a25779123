// Package stageexec runs one pipeline stage against a claimed task,
// persisting progress transitions and translating failures into
// requester-facing notifications.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipdub/internal/logging"
	"clipdub/internal/notifications"
	"clipdub/internal/queue"
	"clipdub/internal/services"
)

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Prepare(context.Context, *queue.Task) error
	Execute(context.Context, *queue.Task) error
}

// Options controls stage execution and queue persistence behavior.
type Options struct {
	Logger    *slog.Logger
	Store     *queue.Store
	Notifier  notifications.Service
	Handler   Handler
	StageName string
	// Progress is the requester-facing status line published when the
	// stage starts.
	Progress string
	Task     *queue.Task
}

// Run executes a stage against the task, recording the progress
// transition before work starts and persisting artifacts after it ends.
// A stage error marks the task failed and notifies the requester.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("queue store is required")
	}
	if opts.Task == nil {
		return fmt.Errorf("queue task is required")
	}

	stageCtx := logging.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"))

	now := time.Now().UTC()
	opts.Task.SetProgress(opts.StageName, opts.Progress)
	opts.Task.LastHeartbeat = &now
	if err := opts.Store.Update(stageCtx, opts.Task); err != nil {
		return fmt.Errorf("persist progress transition: %w", err)
	}
	if opts.Notifier != nil && opts.Progress != "" {
		opts.Notifier.PublishProgress(opts.Task.ChatID, opts.Progress)
	}

	if err := opts.Handler.Prepare(stageCtx, opts.Task); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		return handleFailure(stageCtx, stageLogger, opts, err)
	}
	if err := opts.Store.Update(stageCtx, opts.Task); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := opts.Handler.Execute(stageCtx, opts.Task); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		return handleFailure(stageCtx, stageLogger, opts, err)
	}

	if err := opts.Store.Update(stageCtx, opts.Task); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("progress_stage", strings.TrimSpace(opts.Task.ProgressStage)))

	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	// The captured failure detail, subprocess stderr included, is stored on
	// the task and relayed to the requester as-is.
	message := services.UserMessage(stageErr)
	if message == "" {
		message = "an internal error occurred, please try again later"
	}
	opts.Task.SetFailed(message)
	completed := time.Now().UTC()
	opts.Task.CompletedAt = &completed
	if opts.Task.StartedAt != nil {
		opts.Task.ProcessingSecs = completed.Sub(*opts.Task.StartedAt).Seconds()
	}

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr))

	if err := opts.Store.Update(ctx, opts.Task); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if opts.Notifier != nil {
		if err := opts.Notifier.NotifyFailed(ctx, opts.Task, message); err != nil {
			logger.Debug("stage failure notification failed", logging.Error(err))
		}
	}

	return stageErr
}
