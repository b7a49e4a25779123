package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofrs/flock"

	"clipdub/internal/compose"
	"clipdub/internal/config"
	"clipdub/internal/executor"
	"clipdub/internal/fetch"
	"clipdub/internal/logging"
	"clipdub/internal/notifications"
	"clipdub/internal/preflight"
	"clipdub/internal/queue"
	"clipdub/internal/storage"
	"clipdub/internal/telegram"
	"clipdub/internal/transcribe"
	"clipdub/internal/translate"
	"clipdub/internal/voice"
	"clipdub/internal/workflow"
)

// daemon bundles everything that needs ordered startup and shutdown.
type daemon struct {
	logger   *slog.Logger
	lock     *flock.Flock
	manager  *workflow.Manager
	sweeper  *storage.Sweeper
	notifier notifications.Service
	bot      *telegram.Client
	insta    *fetch.InstagramClient
}

// bootstrap assembles the daemon: single-instance lock, preflight
// checks, stage services, worker pool, and retention schedule.
func bootstrap(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon, error) {
	lock := flock.New(cfg.LockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another clipdubd instance holds %s", cfg.LockFilePath())
	}

	report := preflight.Run(cfg, logger)
	if !report.Ready() {
		details := make([]string, 0, len(report.Failures()))
		for _, check := range report.Failures() {
			details = append(details, fmt.Sprintf("%s (%s)", check.Name, check.Detail))
		}
		_ = lock.Unlock()
		return nil, fmt.Errorf("preflight failed: %s", strings.Join(details, ", "))
	}

	bot := telegram.NewClient(cfg.Telegram, logger)
	notifier := notifications.NewService(cfg, logger, bot)
	runner := executor.NewRunner()

	var insta *fetch.InstagramClient
	if cfg.Download.InstagramFallback {
		insta = fetch.NewInstagramClient(cfg.Download, logger)
	}

	spaces := storage.NewWorkspaces(cfg, logger)
	pipeline := workflow.NewPipeline(cfg, logger, store, notifier, spaces,
		fetch.NewService(cfg, logger, runner, insta, bot),
		transcribe.NewService(cfg, logger, runner),
		translate.NewService(cfg, logger, translate.NewArgosBridge(cfg.Translate, logger, runner)),
		voice.NewSynthesizer(cfg, logger, runner),
		compose.NewService(cfg, logger, runner),
	)

	return &daemon{
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lock:     lock,
		manager:  workflow.NewManager(cfg, store, logger, notifier, pipeline),
		sweeper:  storage.NewSweeper(cfg, logger, store, spaces),
		notifier: notifier,
		bot:      bot,
		insta:    insta,
	}, nil
}

func (d *daemon) Start(ctx context.Context) error {
	if err := d.manager.Start(ctx); err != nil {
		return err
	}
	if err := d.sweeper.Start(); err != nil {
		return err
	}
	d.logger.Info("clipdubd started")
	return nil
}

func (d *daemon) Stop() {
	d.sweeper.Stop()
	d.manager.Stop()
	d.notifier.Close()
}

func (d *daemon) Close() {
	if d.bot != nil {
		_ = d.bot.Close()
	}
	if d.insta != nil {
		_ = d.insta.Close()
	}
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
}
