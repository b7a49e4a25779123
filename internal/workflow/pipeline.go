// Package workflow coordinates queue processing: a worker pool claims
// tasks and drives each one through the download, transcription,
// translation, voiceover, and compositing stages.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipdub/internal/compose"
	"clipdub/internal/config"
	"clipdub/internal/fetch"
	"clipdub/internal/logging"
	"clipdub/internal/notifications"
	"clipdub/internal/queue"
	"clipdub/internal/stage"
	"clipdub/internal/stageexec"
	"clipdub/internal/storage"
	"clipdub/internal/transcribe"
	"clipdub/internal/translate"
	"clipdub/internal/voice"
)

// Stage service contracts. The concrete services satisfy them; tests
// substitute fakes.
type (
	Fetcher interface {
		Fetch(ctx context.Context, task *queue.Task, workDir string) (fetch.Result, error)
	}
	Transcriber interface {
		Transcribe(ctx context.Context, videoPath, workDir, sourceLang string) (transcribe.Result, error)
	}
	Translator interface {
		TranslateSubtitles(ctx context.Context, srtPath, workDir, targetLang, sourceLang string) translate.Result
	}
	VoiceSynthesizer interface {
		Generate(ctx context.Context, srtPath, workDir, language, gender string) voice.Result
	}
	Compositor interface {
		Compose(ctx context.Context, params compose.Params, workDir string) (string, error)
	}
)

// Pipeline wires the five stages around a claimed task.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	notifier notifications.Service
	spaces   *storage.Workspaces

	fetcher     Fetcher
	transcriber Transcriber
	translator  Translator
	voices      VoiceSynthesizer
	compositor  Compositor
}

// NewPipeline assembles the stage services into a pipeline.
func NewPipeline(
	cfg *config.Config,
	logger *slog.Logger,
	store *queue.Store,
	notifier notifications.Service,
	spaces *storage.Workspaces,
	fetcher Fetcher,
	transcriber Transcriber,
	translator Translator,
	voices VoiceSynthesizer,
	compositor Compositor,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		store:       store,
		notifier:    notifier,
		spaces:      spaces,
		fetcher:     fetcher,
		transcriber: transcriber,
		translator:  translator,
		voices:      voices,
		compositor:  compositor,
	}
}

// Process drives a claimed task through its enabled stages and records
// the terminal state. The returned error reflects the failing stage.
func (p *Pipeline) Process(ctx context.Context, task *queue.Task) error {
	workDir, err := p.spaces.Create(task.ID)
	if err != nil {
		task.SetFailed("an internal error occurred, please try again later")
		completed := time.Now().UTC()
		task.CompletedAt = &completed
		if updateErr := p.store.Update(ctx, task); updateErr != nil {
			p.logger.Error("failed to persist workspace failure", logging.Error(updateErr))
		}
		return fmt.Errorf("create workspace for task %d: %w", task.ID, err)
	}

	run := &pipelineRun{pipeline: p, task: task, workDir: workDir}
	for _, step := range run.stages() {
		if !step.enabled {
			continue
		}
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:    p.logger,
			Store:     p.store,
			Notifier:  p.notifier,
			Handler:   step.handler,
			StageName: step.name,
			Progress:  step.progress,
			Task:      task,
		})
		if err != nil {
			return err
		}
	}

	return p.finalize(ctx, task)
}

func (p *Pipeline) finalize(ctx context.Context, task *queue.Task) error {
	completed := time.Now().UTC()
	task.Status = queue.StatusCompleted
	task.CompletedAt = &completed
	task.LastHeartbeat = nil
	if task.StartedAt != nil {
		task.ProcessingSecs = completed.Sub(*task.StartedAt).Seconds()
	}
	task.SetProgress("completed", "Done")
	if err := p.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist completion: %w", err)
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyCompleted(ctx, task); err != nil {
			p.logger.Warn("completion notification failed",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
		}
	}
	return nil
}

// StageHealth reports the readiness of every stage.
func (p *Pipeline) StageHealth(ctx context.Context) []stage.Health {
	run := &pipelineRun{pipeline: p}
	checks := make([]stage.Health, 0, 5)
	for _, step := range run.stages() {
		checks = append(checks, step.handler.HealthCheck(ctx))
	}
	return checks
}

// pipelineRun carries per-task state shared between stages, most
// importantly the language the captions are in after translation.
type pipelineRun struct {
	pipeline    *Pipeline
	task        *queue.Task
	workDir     string
	captionLang string
}

type pipelineStep struct {
	name     string
	progress string
	enabled  bool
	handler  stage.Handler
}

func (r *pipelineRun) stages() []pipelineStep {
	options := queue.Options{}
	if r.task != nil {
		options = r.task.Options
	}
	subtitled := func() bool { return r.task != nil && r.task.SubtitleFile != "" }
	return []pipelineStep{
		{
			name:     "fetch",
			progress: "Downloading video...",
			enabled:  true,
			handler:  &fetchStage{run: r},
		},
		{
			name:     "transcribe",
			progress: "Transcribing audio...",
			enabled:  options.GenerateSubtitles,
			handler:  &transcribeStage{run: r},
		},
		{
			name:     "translate",
			progress: "Translating subtitles...",
			enabled:  options.Translate && options.GenerateSubtitles,
			handler:  &translateStage{run: r, gate: subtitled},
		},
		{
			name:     "voice",
			progress: "Generating voiceover...",
			enabled:  options.Voiceover && options.GenerateSubtitles,
			handler:  &voiceStage{run: r, gate: subtitled},
		},
		{
			name:     "compose",
			progress: "Rendering final video...",
			enabled:  true,
			handler:  &composeStage{run: r},
		},
	}
}
