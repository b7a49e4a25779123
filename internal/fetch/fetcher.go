package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clipdub/internal/config"
	"clipdub/internal/executor"
	"clipdub/internal/logging"
	"clipdub/internal/queue"
	"clipdub/internal/services"
)

const stageName = "fetch"

// timeoutBackoff is the pause before the single timeout retry.
const timeoutBackoff = 2 * time.Second

// FileSource pulls a chat file reference into a directory and returns the
// local path. The Telegram client implements it.
type FileSource interface {
	DownloadToDir(ctx context.Context, fileID, dir string) (string, error)
}

// Result describes a resolved input.
type Result struct {
	Path     string
	Platform string
}

// Service downloads task inputs.
type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	runner    executor.Runner
	instagram *InstagramClient
	files     FileSource

	// sleep is replaced in tests to skip the retry backoff.
	sleep func(time.Duration)
}

// NewService builds a fetcher. instagram may be nil to disable the
// alternate retrieval path, files may be nil when chat file input is not
// wired.
func NewService(cfg *config.Config, logger *slog.Logger, runner executor.Runner, instagram *InstagramClient, files FileSource) *Service {
	if runner == nil {
		runner = executor.NewRunner()
	}
	return &Service{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "fetch"),
		runner:    runner,
		instagram: instagram,
		files:     files,
		sleep:     time.Sleep,
	}
}

// Fetch resolves the task input into a local media file under workDir.
func (s *Service) Fetch(ctx context.Context, task *queue.Task, workDir string) (Result, error) {
	switch task.InputKind {
	case queue.InputTelegramFile:
		return s.fromFileReference(ctx, task.InputFileID, workDir)
	case queue.InputURL:
		return s.fromURL(ctx, task.InputURL, workDir)
	default:
		return Result{}, services.Wrap(services.ErrValidation, stageName, "dispatch", fmt.Sprintf("unknown input kind %q", task.InputKind), nil)
	}
}

func (s *Service) fromFileReference(ctx context.Context, fileID, workDir string) (Result, error) {
	if s.files == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "file download", "no file source configured", nil)
	}
	path, err := s.files.DownloadToDir(ctx, fileID, workDir)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "file download", "", err)
	}
	if err := s.checkFile(path); err != nil {
		return Result{}, err
	}
	s.logger.Info("downloaded chat file", logging.String("path", path))
	return Result{Path: path}, nil
}

func (s *Service) fromURL(ctx context.Context, rawURL, workDir string) (Result, error) {
	platform, err := ClassifyURL(rawURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrUnsupported, stageName, "classify", "the link is not supported, send a YouTube, TikTok, or Instagram video", err)
	}

	log := s.logger.With(logging.String(logging.FieldPlatform, platform))
	log.Info("starting download", logging.String("url", rawURL))

	args := ytdlpArgs(s.cfg.Download, platform, workDir)
	res, runErr := s.runYtdlp(ctx, args, rawURL)
	if runErr != nil {
		switch classifyFailure(runErr.Error() + " " + res.Stderr) {
		case failureRestricted:
			if path, ok := s.tryAlternate(ctx, platform, rawURL, workDir, log); ok {
				return Result{Path: path, Platform: platform}, nil
			}
			if platform == PlatformInstagram {
				return Result{}, services.Wrap(services.ErrRestricted, stageName, "download",
					"Instagram restricted access to this video (age restrictions), provide a cookies file or a different proxy", nil)
			}
			return Result{}, services.Wrap(services.ErrRestricted, stageName, "download",
				"the video is unavailable for anonymous viewing (age or region restrictions), please send another link", nil)
		case failureTimeout:
			log.Warn("download timed out, retrying once", logging.Error(runErr))
			s.sleep(timeoutBackoff)
			if res, runErr = s.runYtdlp(ctx, args, rawURL); runErr == nil {
				break
			}
			return Result{}, services.Wrap(services.ErrTimeout, stageName, "download",
				fmt.Sprintf("%s is slow or unavailable, please try again later", platform), runErr)
		case failureBlocked:
			if path, ok := s.tryAlternate(ctx, platform, rawURL, workDir, log); ok {
				return Result{Path: path, Platform: platform}, nil
			}
			return Result{}, services.Wrap(services.ErrRestricted, stageName, "download",
				"the video is not accessible, it may be private or require authentication", nil)
		case failureFormat:
			log.Warn("format selection failed, retrying with best", logging.Error(runErr))
			fallback := append(ytdlpArgs(s.cfg.Download, "", workDir), "-f", "best")
			if res, runErr = s.runYtdlp(ctx, fallback, rawURL); runErr != nil {
				return Result{}, services.Wrap(services.ErrExternalTool, stageName, "download", "fallback format failed", runErr)
			}
		default:
			if path, ok := s.tryAlternate(ctx, platform, rawURL, workDir, log); ok {
				return Result{Path: path, Platform: platform}, nil
			}
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "download", "", runErr)
		}
	}

	path, err := s.locateDownload(workDir)
	if err != nil {
		return Result{}, err
	}
	if err := s.checkFile(path); err != nil {
		return Result{}, err
	}
	log.Info("download finished",
		logging.String("path", path),
		logging.Duration("elapsed", res.Duration))
	return Result{Path: path, Platform: platform}, nil
}

func (s *Service) runYtdlp(ctx context.Context, args []string, rawURL string) (executor.Result, error) {
	return s.runner.Run(ctx, executor.Command{
		Name:    "yt-dlp",
		Args:    append(append([]string{}, args...), rawURL),
		Timeout: time.Duration(s.cfg.Download.Timeout) * time.Second,
	})
}

// tryAlternate attempts the Instagram direct retrieval path. It only
// applies to Instagram links when the fallback is enabled and configured.
func (s *Service) tryAlternate(ctx context.Context, platform, rawURL, workDir string, log *slog.Logger) (string, bool) {
	if platform != PlatformInstagram || !s.cfg.Download.InstagramFallback || s.instagram == nil {
		return "", false
	}
	log.Info("trying alternate Instagram retrieval path")
	path, err := s.instagram.Fetch(ctx, rawURL, workDir)
	if err != nil {
		log.Error("alternate Instagram path failed", logging.Error(err))
		return "", false
	}
	if err := s.checkFile(path); err != nil {
		log.Error("alternate Instagram path produced a bad file", logging.Error(err))
		return "", false
	}
	return path, true
}

// locateDownload finds the produced input.* file; the extension depends on
// the selected format.
func (s *Service) locateDownload(workDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(workDir, "input.*"))
	if err != nil || len(matches) == 0 {
		return "", services.Wrap(services.ErrExternalTool, stageName, "download", "downloaded file not found", err)
	}
	return matches[0], nil
}

func (s *Service) checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "verify", "downloaded file not found", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, stageName, "verify", fmt.Sprintf("downloaded file is empty: %s", filepath.Base(path)), nil)
	}
	if limit := int64(s.cfg.Download.MaxFileMB) * 1024 * 1024; limit > 0 && info.Size() > limit {
		return services.Wrap(services.ErrValidation, stageName, "verify",
			fmt.Sprintf("the video is larger than the %d MB limit", s.cfg.Download.MaxFileMB), nil)
	}
	return nil
}
