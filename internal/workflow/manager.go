package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipdub/internal/config"
	"clipdub/internal/logging"
	"clipdub/internal/notifications"
	"clipdub/internal/queue"
)

// Manager runs the worker pool that claims and processes queued tasks.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pipeline     *Pipeline
	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager around the assembled pipeline.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, pipeline *Pipeline) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pipeline:     pipeline,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.pipeline == nil {
		return errors.New("workflow pipeline not configured")
	}

	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		workerID := uuid.NewString()
		go m.runWorker(runCtx, workerID)
	}
	m.logger.Info("worker pool started", logging.Int("workers", workers))
	return nil
}

// Stop terminates background processing, waits for in-flight stages to
// notice cancellation, and returns claimed tasks to the waiting state.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	ctx, cancelRequeue := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelRequeue()
	requeued, err := m.store.RequeueProcessing(ctx)
	if err != nil {
		m.logger.Error("failed to requeue in-flight tasks on shutdown", logging.Error(err))
		return
	}
	if requeued > 0 {
		m.logger.Info("requeued in-flight tasks for restart", logging.Int64("count", requeued))
	}
}

func (m *Manager) runWorker(ctx context.Context, workerID string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldWorker, workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("reclaim stale tasks failed, stuck tasks may remain", logging.Error(err))
		}

		task, err := m.store.Claim(ctx, workerID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to claim next task", logging.Error(err))
			m.waitForTaskOrShutdown(ctx)
			continue
		}
		if task == nil {
			m.waitForTaskOrShutdown(ctx)
			continue
		}

		if err := m.processTask(ctx, workerID, task); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("task processing failed",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
		}
	}
}

func (m *Manager) processTask(ctx context.Context, workerID string, task *queue.Task) error {
	taskCtx := logging.WithWorker(logging.WithTask(ctx, task.ID), workerID)
	taskCtx, cancel := context.WithTimeout(taskCtx, m.taskDeadline(task))
	defer cancel()

	hbCtx, hbCancel := context.WithCancel(taskCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task.ID)

	err := m.pipeline.Process(taskCtx, task)
	hbCancel()
	hbWG.Wait()
	return err
}

// taskDeadline bounds one task's wall clock by the sum of the timeouts of
// the stages it will run, with headroom for queue writes and uploads.
func (m *Manager) taskDeadline(task *queue.Task) time.Duration {
	seconds := m.cfg.Download.Timeout + m.cfg.Compose.Timeout
	if task.Options.GenerateSubtitles {
		seconds += m.cfg.Transcribe.Timeout
		if task.Options.Translate {
			seconds += m.cfg.Translate.Timeout
		}
		if task.Options.Voiceover {
			seconds += m.cfg.Voice.Timeout
		}
	}
	return time.Duration(seconds)*time.Second + 2*time.Minute
}

func (m *Manager) waitForTaskOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// Health summarizes queue counts and stage readiness for diagnostics.
func (m *Manager) Health(ctx context.Context) (queue.HealthSummary, error) {
	summary, err := m.store.Health(ctx)
	if err != nil {
		return queue.HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	return summary, nil
}
