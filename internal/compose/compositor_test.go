package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipdub/internal/executor"
	"clipdub/internal/services"
	"clipdub/internal/subtitles"
	"clipdub/internal/testsupport"
)

func writeCaptions(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "subtitles.srt")
	err := subtitles.WriteSRTFile(path, []subtitles.Segment{
		{Index: 1, Start: 0, End: time.Second, Text: "hello"},
	})
	if err != nil {
		t.Fatalf("write captions: %v", err)
	}
	return path
}

// captureRunner answers ffprobe with fixed dimensions and records the
// ffmpeg invocation, creating the output file.
func captureRunner(t *testing.T, workDir string, ffmpegArgs *[]string) executor.Runner {
	return executor.RunnerFunc(func(ctx context.Context, cmd executor.Command) (executor.Result, error) {
		switch cmd.Name {
		case "ffprobe":
			return executor.Result{Stdout: `{"streams":[{"codec_type":"video","width":1920,"height":1080}],"format":{}}`}, nil
		case "ffmpeg":
			*ffmpegArgs = cmd.Args
			if err := os.WriteFile(filepath.Join(workDir, "output.mp4"), []byte("encoded"), 0o644); err != nil {
				t.Fatalf("write output: %v", err)
			}
			return executor.Result{}, nil
		}
		t.Fatalf("unexpected command %q", cmd.Name)
		return executor.Result{}, nil
	})
}

func TestComposeBurnsStyledTrack(t *testing.T) {
	workDir := t.TempDir()
	srt := writeCaptions(t, workDir)
	cfg := testsupport.NewConfig(t)
	var args []string

	svc := NewService(cfg, nil, captureRunner(t, workDir, &args))
	output, err := svc.Compose(context.Background(), Params{
		InputPath:    "/in/input.mp4",
		SubtitlePath: srt,
	}, workDir)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if filepath.Base(output) != "output.mp4" {
		t.Fatalf("unexpected output %q", output)
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "styled.ass") {
		t.Fatalf("captions should burn from the styled track: %q", joined)
	}
	if strings.Contains(joined, "force_style") {
		t.Fatalf("styled track needs no force_style: %q", joined)
	}
	if _, err := os.Stat(filepath.Join(workDir, "styled.ass")); err != nil {
		t.Fatalf("styled track missing: %v", err)
	}
	if !strings.Contains(joined, "fontsdir='"+cfg.Paths.FontsDir+"'") {
		t.Fatalf("burn-in should use the configured fonts directory: %q", joined)
	}
	for _, flag := range []string{"-c:v libx264", "-pix_fmt yuv420p", "-movflags +faststart", "-crf 23"} {
		if !strings.Contains(joined, flag) {
			t.Fatalf("encoder profile missing %q: %q", flag, joined)
		}
	}
}

func TestComposeVerticalUsesProbedDimensions(t *testing.T) {
	workDir := t.TempDir()
	var args []string

	svc := NewService(testsupport.NewConfig(t), nil, captureRunner(t, workDir, &args))
	if _, err := svc.Compose(context.Background(), Params{
		InputPath: "/in/input.mp4",
		Vertical:  true,
	}, workDir); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	joined := strings.Join(args, " ")
	// 1920x1080 source: centered 606-wide crop, padded onto 1080x1920
	if !strings.Contains(joined, "crop=606:1080:657:0") {
		t.Fatalf("reframe should use probed dimensions: %q", joined)
	}
	if !strings.Contains(joined, "pad=1080:1920:") {
		t.Fatalf("reframe must pad onto the fixed canvas: %q", joined)
	}
}

func TestComposeMixesVoiceover(t *testing.T) {
	workDir := t.TempDir()
	srt := writeCaptions(t, workDir)
	var args []string

	svc := NewService(testsupport.NewConfig(t), nil, captureRunner(t, workDir, &args))
	if _, err := svc.Compose(context.Background(), Params{
		InputPath:     "/in/input.mp4",
		SubtitlePath:  srt,
		VoiceoverPath: "/in/voiceover.wav",
	}, workDir); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i /in/voiceover.wav") {
		t.Fatalf("voice track must be a second input: %q", joined)
	}
	if !strings.Contains(joined, "[0:a]volume=0.3[orig];[1:a]volume=1.0[voice]") {
		t.Fatalf("mix must apply the configured gains: %q", joined)
	}
	if !strings.Contains(joined, "amix=inputs=2:duration=first:normalize=0,loudnorm[aout]") {
		t.Fatalf("mix must sum and normalize: %q", joined)
	}
	if !strings.Contains(joined, "-map [vout] -map [aout]") {
		t.Fatalf("complex graph outputs must be mapped: %q", joined)
	}
	if strings.Contains(joined, " -vf ") {
		t.Fatalf("-vf cannot be combined with filter_complex: %q", joined)
	}
}

func TestComposeWatermark(t *testing.T) {
	workDir := t.TempDir()
	var args []string

	svc := NewService(testsupport.NewConfig(t), nil, captureRunner(t, workDir, &args))
	if _, err := svc.Compose(context.Background(), Params{
		InputPath: "/in/input.mp4",
		Watermark: "clipdub",
	}, workDir); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "drawtext=text='clipdub'") {
		t.Fatalf("watermark missing: %v", args)
	}
}

func TestComposeSubprocessFailure(t *testing.T) {
	runner := executor.RunnerFunc(func(ctx context.Context, cmd executor.Command) (executor.Result, error) {
		return executor.Result{Stderr: "boom"}, errors.New("ffmpeg exited with status 1: boom")
	})

	svc := NewService(testsupport.NewConfig(t), nil, runner)
	_, err := svc.Compose(context.Background(), Params{InputPath: "/in/input.mp4"}, t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestComposeMissingOutputIsFailure(t *testing.T) {
	runner := executor.RunnerFunc(func(ctx context.Context, cmd executor.Command) (executor.Result, error) {
		return executor.Result{Stderr: "muxer exploded"}, nil
	})

	svc := NewService(testsupport.NewConfig(t), nil, runner)
	_, err := svc.Compose(context.Background(), Params{InputPath: "/in/input.mp4"}, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "muxer exploded") {
		t.Fatalf("missing output must fail with captured stderr, got %v", err)
	}
}
