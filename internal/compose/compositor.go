// Package compose renders the final video: styled caption burn-in,
// optional vertical reframe, watermark, and voiceover mixing, encoded
// with a fixed compatibility-oriented H.264/AAC profile.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"clipdub/internal/config"
	"clipdub/internal/executor"
	"clipdub/internal/logging"
	"clipdub/internal/media/ffprobe"
	"clipdub/internal/media/filtergraph"
	"clipdub/internal/services"
	"clipdub/internal/subtitles"
)

const stageName = "compose"

// Params describes one compositing job. Empty artifact paths disable the
// corresponding feature.
type Params struct {
	InputPath     string
	SubtitlePath  string
	VoiceoverPath string
	Vertical      bool
	Watermark     string
	Style         string
	Position      string
	TargetLang    string
}

// Service builds and runs the ffmpeg compositing command.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	runner executor.Runner
}

// NewService builds a compositor.
func NewService(cfg *config.Config, logger *slog.Logger, runner executor.Runner) *Service {
	if runner == nil {
		runner = executor.NewRunner()
	}
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "compose"),
		runner: runner,
	}
}

// Compose produces workDir/output.mp4 from the given artifacts.
func (s *Service) Compose(ctx context.Context, params Params, workDir string) (string, error) {
	chain := filtergraph.New()
	if params.Vertical {
		width, height := s.probeDimensions(ctx, params.InputPath)
		chain.VerticalFromSource(width, height)
	}
	if params.Watermark != "" {
		chain.Watermark(params.Watermark)
	}
	if params.SubtitlePath != "" {
		track, forceStyle := s.styledTrack(params, workDir)
		chain.BurnSubtitles(track, forceStyle, s.cfg.Paths.FontsDir)
	}

	output := filepath.Join(workDir, "output.mp4")
	args := []string{"-y", "-i", params.InputPath}
	if params.VoiceoverPath != "" {
		args = append(args, "-i", params.VoiceoverPath)
		args = append(args, "-filter_complex", s.fullGraph(chain))
		args = append(args, "-map", "[vout]", "-map", "[aout]")
	} else {
		if !chain.Empty() {
			args = append(args, "-vf", chain.String())
		}
		args = append(args, "-map", "0:v", "-map", "0:a?")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", s.cfg.Compose.Preset,
		"-crf", strconv.Itoa(s.cfg.Compose.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	)

	s.logger.Info("compositing",
		logging.Bool("vertical", params.Vertical),
		logging.Bool("captions", params.SubtitlePath != ""),
		logging.Bool("voiceover", params.VoiceoverPath != ""))

	res, err := s.runner.Run(ctx, executor.Command{
		Name:    "ffmpeg",
		Args:    args,
		Timeout: time.Duration(s.cfg.Compose.Timeout) * time.Second,
	})
	if err != nil {
		if errors.Is(err, executor.ErrTimedOut) {
			return "", services.Wrap(services.ErrTimeout, stageName, "encode", "video rendering timed out", err)
		}
		return "", services.Wrap(services.ErrExternalTool, stageName, "encode", "", err)
	}

	info, statErr := os.Stat(output)
	if statErr != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, stageName, "encode",
			fmt.Sprintf("no output produced: %s", executor.TruncateOutput(res.Stderr, 512)), nil)
	}
	s.logger.Info("composited",
		logging.String("path", output),
		logging.Int64("bytes", info.Size()),
		logging.Duration("elapsed", res.Duration))
	return output, nil
}

// styledTrack converts the caption file into a styled ASS track. When the
// conversion fails the raw SRT is burned with a force_style override
// carrying the same parameters.
func (s *Service) styledTrack(params Params, workDir string) (path, forceStyle string) {
	style := params.Style
	if style == "" {
		style = s.cfg.Compose.DefaultStyle
	}
	position := params.Position
	if position == "" {
		position = s.cfg.Compose.DefaultPosition
	}

	segments, err := subtitles.ParseSRTFile(params.SubtitlePath)
	if err == nil && len(segments) > 0 {
		assPath := filepath.Join(workDir, "styled.ass")
		if err := subtitles.WriteASSFile(assPath, segments, style, position, params.TargetLang); err == nil {
			return assPath, ""
		}
	}
	s.logger.Warn("could not build styled track, burning captions directly", logging.Error(err))
	return params.SubtitlePath, subtitles.ForceStyle(style, position, params.TargetLang)
}

// fullGraph moves the video chain into a filter_complex alongside the
// voiceover mix; -vf cannot be combined with complex filtering.
func (s *Service) fullGraph(chain *filtergraph.Chain) string {
	video := "[0:v]null[vout]"
	if !chain.Empty() {
		video = "[0:v]" + chain.String() + "[vout]"
	}
	return video + ";" + s.mixGraph()
}

// mixGraph attenuates the original audio, boosts the voice track, sums
// them, and normalizes the result.
func (s *Service) mixGraph() string {
	return fmt.Sprintf(
		"[0:a]volume=%s[orig];[1:a]volume=%s[voice];[orig][voice]amix=inputs=2:duration=first:normalize=0,loudnorm[aout]",
		s.cfg.Voice.OriginalGain, s.cfg.Voice.VoiceoverGain)
}

func (s *Service) probeDimensions(ctx context.Context, path string) (int, int) {
	result, err := ffprobe.Inspect(ctx, s.runner, "", path)
	if err != nil {
		s.logger.Warn("probe failed, using generic reframe", logging.Error(err))
		return 0, 0
	}
	return result.Dimensions()
}
