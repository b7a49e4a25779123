// clipdubd is the processing daemon: it claims queued dubbing tasks and
// drives them through the download, transcription, translation,
// voiceover, and compositing stages.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"clipdub/internal/config"
	"clipdub/internal/logging"
	"clipdub/internal/queue"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		LogDir:     cfg.Paths.LogDir,
		FileName:   "clipdubd.log",
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}
	defer store.Close()

	daemon, err := bootstrap(cfg, store, logger)
	if err != nil {
		logger.Error("daemon bootstrap failed", logging.Error(err))
		return
	}
	defer daemon.Close()

	if err := daemon.Start(ctx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("clipdubd shutting down")
	daemon.Stop()
}
