// Package notifications delivers task outcomes and progress updates back
// to the requesting chat.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"clipdub/internal/config"
	"clipdub/internal/logging"
	"clipdub/internal/queue"
)

// Sender is the chat transport the notifier writes through. The Telegram
// client implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	SendVideo(ctx context.Context, chatID int64, path, caption string) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	// NotifyCompleted delivers the finished video and any subtitle
	// attachment to the requester.
	NotifyCompleted(ctx context.Context, task *queue.Task) error
	// NotifyFailed tells the requester why processing stopped.
	NotifyFailed(ctx context.Context, task *queue.Task, reason string) error
	// PublishProgress queues a short status line without blocking the
	// pipeline. Updates are dropped when the queue is full.
	PublishProgress(chatID int64, text string)
	// Close stops the progress publisher and flushes queued updates.
	Close()
}

// NewService builds a chat-backed notifier. When notifications are
// disabled or no sender is wired, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger, sender Sender) Service {
	if sender == nil || !cfg.Notifications.Enabled {
		return noopService{}
	}
	svc := &chatService{
		cfg:    cfg.Notifications,
		logger: logging.NewComponentLogger(logger, "notifications"),
		sender: sender,
	}
	if cfg.Notifications.ProgressEvents {
		svc.publisher = newStatusPublisher(svc.logger, sender, cfg.Workflow.StatusBufferLength)
	}
	return svc
}

type chatService struct {
	cfg       config.Notifications
	logger    *slog.Logger
	sender    Sender
	publisher *statusPublisher
}

func (s *chatService) NotifyCompleted(ctx context.Context, task *queue.Task) error {
	artifact := task.FinalArtifact()
	if artifact == "" {
		return fmt.Errorf("task %d completed without an artifact", task.ID)
	}

	message := fmt.Sprintf("✅ Task #%d finished in %s.", task.ID, formatSeconds(task.ProcessingSecs))
	if _, err := s.sender.SendMessage(ctx, task.ChatID, message); err != nil {
		s.logger.Warn("completion message failed", logging.Int64(logging.FieldTaskID, task.ID), logging.Error(err))
	}

	if err := s.sender.SendVideo(ctx, task.ChatID, artifact, ""); err != nil {
		return fmt.Errorf("deliver video for task %d: %w", task.ID, err)
	}
	if task.SubtitleFile != "" {
		if err := s.sender.SendDocument(ctx, task.ChatID, task.SubtitleFile, "Subtitles"); err != nil {
			s.logger.Warn("subtitle delivery failed", logging.Int64(logging.FieldTaskID, task.ID), logging.Error(err))
		}
	}
	return nil
}

func (s *chatService) NotifyFailed(ctx context.Context, task *queue.Task, reason string) error {
	if !s.cfg.Errors {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "an internal error occurred, please try again later"
	}
	message := fmt.Sprintf("❌ Task #%d failed: %s\nYou can retry the task; contact the operator if it keeps failing.", task.ID, reason)
	if _, err := s.sender.SendMessage(ctx, task.ChatID, message); err != nil {
		return fmt.Errorf("deliver failure notice for task %d: %w", task.ID, err)
	}
	return nil
}

func (s *chatService) PublishProgress(chatID int64, text string) {
	if s.publisher == nil {
		return
	}
	s.publisher.publish(chatID, text)
}

func (s *chatService) Close() {
	if s.publisher != nil {
		s.publisher.close()
	}
}

func formatSeconds(secs float64) string {
	if secs < 1 {
		return "under a second"
	}
	total := int(secs)
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

type noopService struct{}

func (noopService) NotifyCompleted(context.Context, *queue.Task) error      { return nil }
func (noopService) NotifyFailed(context.Context, *queue.Task, string) error { return nil }
func (noopService) PublishProgress(int64, string)                           {}
func (noopService) Close()                                                  {}
