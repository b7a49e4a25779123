package workflow

import (
	"context"
	"fmt"
	"os/exec"

	"clipdub/internal/compose"
	"clipdub/internal/logging"
	"clipdub/internal/queue"
	"clipdub/internal/services"
	"clipdub/internal/stage"
)

func binaryHealth(name, binary string) stage.Health {
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
	}
	return stage.Healthy(name)
}

type fetchStage struct {
	run *pipelineRun
}

func (s *fetchStage) Prepare(ctx context.Context, task *queue.Task) error {
	switch task.InputKind {
	case queue.InputURL:
		if task.InputURL == "" {
			return services.Wrap(services.ErrValidation, "fetch", "prepare", "the task has no source link", nil)
		}
	case queue.InputTelegramFile:
		if task.InputFileID == "" {
			return services.Wrap(services.ErrValidation, "fetch", "prepare", "the task has no source file", nil)
		}
	default:
		return services.Wrap(services.ErrValidation, "fetch", "prepare", fmt.Sprintf("unknown input kind %q", task.InputKind), nil)
	}
	return nil
}

func (s *fetchStage) Execute(ctx context.Context, task *queue.Task) error {
	res, err := s.run.pipeline.fetcher.Fetch(ctx, task, s.run.workDir)
	if err != nil {
		return err
	}
	task.InputFile = res.Path
	task.Platform = res.Platform
	return nil
}

func (s *fetchStage) HealthCheck(ctx context.Context) stage.Health {
	return binaryHealth("fetch", "yt-dlp")
}

type transcribeStage struct {
	run *pipelineRun
}

func (s *transcribeStage) Prepare(ctx context.Context, task *queue.Task) error {
	if task.InputFile == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare", "no downloaded media to transcribe", nil)
	}
	return nil
}

func (s *transcribeStage) Execute(ctx context.Context, task *queue.Task) error {
	res, err := s.run.pipeline.transcriber.Transcribe(ctx, task.InputFile, s.run.workDir, task.Options.SourceLanguage)
	if err != nil {
		return err
	}
	task.SubtitleFile = res.SubtitlePath
	task.DetectedLanguage = res.Language
	s.run.captionLang = res.Language
	return nil
}

func (s *transcribeStage) HealthCheck(ctx context.Context) stage.Health {
	return binaryHealth("transcribe", "whisper-ctranslate2")
}

type translateStage struct {
	run  *pipelineRun
	gate func() bool
}

func (s *translateStage) Prepare(ctx context.Context, task *queue.Task) error {
	return nil
}

func (s *translateStage) Execute(ctx context.Context, task *queue.Task) error {
	if s.gate != nil && !s.gate() {
		return nil
	}
	source := s.run.captionLang
	if source == "" {
		source = task.DetectedLanguage
	}
	res := s.run.pipeline.translator.TranslateSubtitles(ctx, task.SubtitleFile, s.run.workDir, task.Options.TargetLanguage, source)
	task.SubtitleFile = res.Path
	if res.Translated {
		s.run.captionLang = res.TargetLanguage
	} else if res.SourceLanguage != "" {
		s.run.captionLang = res.SourceLanguage
	}
	return nil
}

func (s *translateStage) HealthCheck(ctx context.Context) stage.Health {
	return binaryHealth("translate", "argos-translate")
}

type voiceStage struct {
	run  *pipelineRun
	gate func() bool
}

func (s *voiceStage) Prepare(ctx context.Context, task *queue.Task) error {
	return nil
}

func (s *voiceStage) Execute(ctx context.Context, task *queue.Task) error {
	if s.gate != nil && !s.gate() {
		return nil
	}
	language := s.run.captionLang
	if language == "" {
		language = task.DetectedLanguage
	}
	res := s.run.pipeline.voices.Generate(ctx, task.SubtitleFile, s.run.workDir, language, task.Options.VoiceGender)
	if !res.Available {
		// Voiceover degrades to captions-only output.
		s.run.pipeline.logger.Warn("voiceover unavailable, continuing without it",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Int("skipped", res.Skipped))
		return nil
	}
	task.VoiceoverFile = res.Path
	return nil
}

func (s *voiceStage) HealthCheck(ctx context.Context) stage.Health {
	return binaryHealth("voice", "piper")
}

type composeStage struct {
	run *pipelineRun
}

func (s *composeStage) Prepare(ctx context.Context, task *queue.Task) error {
	if task.InputFile == "" {
		return services.Wrap(services.ErrValidation, "compose", "prepare", "no downloaded media to render", nil)
	}
	return nil
}

func (s *composeStage) Execute(ctx context.Context, task *queue.Task) error {
	cfg := s.run.pipeline.cfg
	params := compose.Params{
		InputPath:     task.InputFile,
		SubtitlePath:  task.SubtitleFile,
		VoiceoverPath: task.VoiceoverFile,
		Vertical:      task.Options.Vertical,
		Style:         task.Options.Style,
		Position:      task.Options.Position,
		TargetLang:    s.run.captionLang,
	}
	if task.Options.Watermark {
		params.Watermark = cfg.Compose.WatermarkText
	}
	output, err := s.run.pipeline.compositor.Compose(ctx, params, s.run.workDir)
	if err != nil {
		return err
	}
	task.OutputFile = output
	return nil
}

func (s *composeStage) HealthCheck(ctx context.Context) stage.Health {
	return binaryHealth("compose", "ffmpeg")
}
