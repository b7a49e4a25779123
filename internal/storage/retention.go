package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"clipdub/internal/config"
	"clipdub/internal/logging"
	"clipdub/internal/queue"
)

// Sweeper removes scratch directories left behind by finished tasks on a
// cron schedule.
type Sweeper struct {
	cfg    config.Retention
	logger *slog.Logger
	store  *queue.Store
	spaces *Workspaces
	cron   *cron.Cron
}

// NewSweeper builds a retention sweeper. Call Start to arm the schedule.
func NewSweeper(cfg *config.Config, logger *slog.Logger, store *queue.Store, spaces *Workspaces) *Sweeper {
	return &Sweeper{
		cfg:    cfg.Retention,
		logger: logging.NewComponentLogger(logger, "retention"),
		store:  store,
		spaces: spaces,
		cron:   cron.New(),
	}
}

// Start arms the cron schedule. It is a no-op when retention is disabled.
func (s *Sweeper) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("retention sweep disabled")
		return nil
	}
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", logging.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention sweep %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("retention sweep scheduled", logging.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep removes workspaces of tasks that finished before the retention
// cutoff and returns the number of directories removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	maxAge := time.Duration(s.cfg.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge)

	tasks, err := s.store.FinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list finished tasks: %w", err)
	}

	removed := 0
	for _, task := range tasks {
		if !s.spaces.Exists(task.ID) {
			continue
		}
		if err := s.spaces.Remove(task.ID); err != nil {
			s.logger.Warn("could not remove workspace",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("swept finished workspaces", logging.Int("count", removed))
	}
	return removed, nil
}
