// Package transcribe runs speech recognition over a media file through
// the faster-whisper CLI and serializes the result as word-timed SRT
// captions plus the detected source language.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipdub/internal/config"
	"clipdub/internal/executor"
	"clipdub/internal/logging"
	"clipdub/internal/modelcache"
	"clipdub/internal/services"
	"clipdub/internal/subtitles"
)

const stageName = "transcribe"

// whisperBinary is the CLI front end for faster-whisper.
const whisperBinary = "whisper-ctranslate2"

// modelSpec is the resolved invocation profile for one model, computed
// once per process.
type modelSpec struct {
	Model       string
	Device      string
	ComputeType string
	CacheDir    string
}

// Result carries the transcription artifacts.
type Result struct {
	SubtitlePath string
	Language     string
	Segments     []subtitles.Segment
}

// Service transcribes media files.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	runner executor.Runner
	models *modelcache.Registry[modelSpec]
}

// NewService builds a transcriber.
func NewService(cfg *config.Config, logger *slog.Logger, runner executor.Runner) *Service {
	if runner == nil {
		runner = executor.NewRunner()
	}
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcribe"),
		runner: runner,
		models: modelcache.New[modelSpec](),
	}
}

// Transcribe recognizes speech in videoPath and writes word-timed
// captions to workDir/subtitles.srt. sourceLang may be "auto".
func (s *Service) Transcribe(ctx context.Context, videoPath, workDir, sourceLang string) (Result, error) {
	spec, err := s.models.Get(s.cfg.Transcribe.Model+"/"+s.cfg.Transcribe.Device, s.resolveModel)
	if err != nil {
		return Result{}, err
	}

	args := []string{
		"--model", spec.Model,
		"--device", spec.Device,
		"--compute_type", spec.ComputeType,
		"--output_format", "json",
		"--output_dir", workDir,
		"--beam_size", strconv.Itoa(s.cfg.Transcribe.BeamSize),
		"--vad_filter", "True",
		"--word_timestamps", "True",
		"--verbose", "False",
	}
	if sourceLang != "" && sourceLang != "auto" {
		args = append(args, "--language", sourceLang)
	}
	args = append(args, videoPath)

	s.logger.Info("transcribing",
		logging.String("model", spec.Model),
		logging.String("device", spec.Device),
		logging.String("path", videoPath))

	res, err := s.runner.Run(ctx, executor.Command{
		Name:    whisperBinary,
		Args:    args,
		Env:     []string{"HF_HOME=" + spec.CacheDir},
		Timeout: time.Duration(s.cfg.Transcribe.Timeout) * time.Second,
	})
	if err != nil {
		if errors.Is(err, executor.ErrTimedOut) {
			return Result{}, services.Wrap(services.ErrTimeout, stageName, "recognition", "speech recognition timed out", err)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "recognition", "", err)
	}

	transcript, err := readTranscript(transcriptPath(workDir, videoPath))
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "parse output", "", err)
	}

	segments := transcript.captionSegments()
	if len(segments) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "recognition", "no speech was recognized in the video", nil)
	}

	subtitlePath := filepath.Join(workDir, "subtitles.srt")
	if err := subtitles.WriteSRTFile(subtitlePath, segments); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "write captions", "", err)
	}

	s.logger.Info("transcription finished",
		logging.String(logging.FieldLanguage, transcript.Language),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", res.Duration))
	return Result{
		SubtitlePath: subtitlePath,
		Language:     transcript.Language,
		Segments:     segments,
	}, nil
}

// resolveModel picks the device and compute precision, and prepares the
// model cache directory. The "auto" device is treated as CPU; CUDA is
// used only when configured explicitly.
func (s *Service) resolveModel() (modelSpec, error) {
	device := strings.ToLower(strings.TrimSpace(s.cfg.Transcribe.Device))
	if device != "cuda" {
		device = "cpu"
	}
	computeType := s.cfg.Transcribe.ComputeType
	if computeType == "" {
		if device == "cuda" {
			computeType = "float16"
		} else {
			computeType = "int8"
		}
	}

	cacheDir := filepath.Join(s.cfg.Paths.CacheDir, "models", "whisper")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return modelSpec{}, services.Wrap(services.ErrConfiguration, stageName, "model cache", "", err)
	}
	return modelSpec{
		Model:       s.cfg.Transcribe.Model,
		Device:      device,
		ComputeType: computeType,
		CacheDir:    cacheDir,
	}, nil
}

// transcript mirrors the JSON document the whisper CLI writes.
type transcript struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Word  string  `json:"word"`
		} `json:"words"`
	} `json:"segments"`
}

func transcriptPath(workDir, videoPath string) string {
	base := filepath.Base(videoPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(workDir, base+".json")
}

func readTranscript(path string) (transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcript{}, fmt.Errorf("transcript not found: %w", err)
	}
	var doc transcript
	if err := json.Unmarshal(data, &doc); err != nil {
		return transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	return doc, nil
}

// captionSegments converts the transcript into caption segments,
// preferring per-word timing and falling back to segment timing when a
// segment carries no word entries.
func (t transcript) captionSegments() []subtitles.Segment {
	var segments []subtitles.Segment
	index := 1
	for _, seg := range t.Segments {
		if len(seg.Words) > 0 {
			for _, word := range seg.Words {
				text := strings.TrimSpace(word.Word)
				if text == "" || word.End <= word.Start {
					continue
				}
				segments = append(segments, subtitles.Segment{
					Index: index,
					Start: secondsToDuration(word.Start),
					End:   secondsToDuration(word.End),
					Text:  text,
				})
				index++
			}
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitles.Segment{
			Index: index,
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  text,
		})
		index++
	}
	return segments
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
