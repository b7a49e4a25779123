// Package voice synthesizes a voiceover track from translated captions.
// A catalog maps (language, gender) onto a backend configuration; the
// synchronized mode renders each caption to its own clip and composites
// them at caption offsets over a silent base, the simple mode renders one
// concatenated block. Total failure reports the track as unavailable
// instead of failing the task.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipdub/internal/config"
	"clipdub/internal/executor"
	"clipdub/internal/logging"
	"clipdub/internal/modelcache"
	"clipdub/internal/subtitles"
)

// mixSampleRate is the target sample rate of the composited track.
const mixSampleRate = 22050

// Mode names reported on the result.
const (
	ModeSynchronized = "synchronized"
	ModeSimple       = "simple"
	ModeFallback     = "fallback"
)

// Result describes the produced track. Available is false when nothing
// could be synthesized; the pipeline then completes without a voiceover.
type Result struct {
	Path      string
	Mode      string
	Available bool
	// Skipped counts caption segments whose synthesis failed.
	Skipped int
}

// Synthesizer renders voiceover tracks.
type Synthesizer struct {
	cfg     *config.Config
	logger  *slog.Logger
	runner  executor.Runner
	catalog *Catalog
	rosters *modelcache.Registry[map[string]int]
}

// NewSynthesizer builds a synthesizer with the default catalog.
func NewSynthesizer(cfg *config.Config, logger *slog.Logger, runner executor.Runner) *Synthesizer {
	if runner == nil {
		runner = executor.NewRunner()
	}
	return &Synthesizer{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "voice"),
		runner:  runner,
		catalog: DefaultCatalog(),
		rosters: modelcache.New[map[string]int](),
	}
}

// Catalog exposes the voice roster for registration.
func (s *Synthesizer) Catalog() *Catalog {
	return s.catalog
}

// Generate synthesizes a voiceover for the captions at srtPath into
// workDir. language and gender select the catalog voice.
func (s *Synthesizer) Generate(ctx context.Context, srtPath, workDir, language, gender string) Result {
	segments, err := subtitles.ParseSRTFile(srtPath)
	if err != nil || len(segments) == 0 {
		s.logger.Warn("no captions to voice", logging.Error(err))
		return Result{}
	}
	spoken := withText(segments)
	if len(spoken) == 0 {
		s.logger.Warn("captions carry no speakable text")
		return Result{}
	}
	if gender == "" {
		gender = s.cfg.Voice.DefaultGender
	}
	log := s.logger.With(
		logging.String(logging.FieldLanguage, language),
		logging.String("gender", gender))

	// The configured engine can bypass the piper catalog entirely.
	if s.cfg.Voice.Engine == "espeak" {
		backend := fallbackBackend()
		if !s.cfg.Voice.Synchronized {
			return s.generateSimple(ctx, backend, spoken, workDir, language, ModeSimple, log)
		}
		return s.generateSynchronized(ctx, backend, spoken, workDir, language, log)
	}

	backend, inCatalog := s.catalog.Resolve(language, gender)
	if !inCatalog {
		// Unsupported pair: lose fine timing, keep the voice.
		backend, inCatalog = s.catalog.ResolveAny(language, gender)
		mode := ModeSimple
		if !inCatalog {
			backend = fallbackBackend()
			mode = ModeFallback
		}
		log.Info("voice pair not in catalog, using simple synthesis", logging.String("mode", mode))
		return s.generateSimple(ctx, backend, spoken, workDir, language, mode, log)
	}

	if !s.cfg.Voice.Synchronized {
		return s.generateSimple(ctx, backend, spoken, workDir, language, ModeSimple, log)
	}
	return s.generateSynchronized(ctx, backend, spoken, workDir, language, log)
}

// generateSynchronized renders one clip per caption and composites them
// at caption start offsets over a silent base track.
func (s *Synthesizer) generateSynchronized(ctx context.Context, backend Backend, segments []subtitles.Segment, workDir, language string, log *slog.Logger) Result {
	clipsDir := filepath.Join(workDir, "clips")
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		log.Error("could not create clips directory", logging.Error(err))
		return Result{}
	}

	type clip struct {
		path  string
		start time.Duration
	}
	var clips []clip
	skipped := 0
	for i, segment := range segments {
		path := filepath.Join(clipsDir, fmt.Sprintf("clip_%03d.wav", i))
		if err := s.synthesizeClip(ctx, backend, language, segment.Text, path); err != nil {
			skipped++
			log.Warn("segment synthesis failed, skipping",
				logging.Int("segment", segment.Index),
				logging.Error(err))
			continue
		}
		clips = append(clips, clip{path: path, start: segment.Start})
	}
	if len(clips) == 0 {
		log.Warn("every segment failed to synthesize, voiceover unavailable")
		return Result{Skipped: skipped}
	}

	total := subtitles.TotalSpan(segments) + time.Second
	output := filepath.Join(workDir, "voiceover.wav")

	args := []string{
		"-y",
		"-f", "lavfi",
		"-t", fmt.Sprintf("%.3f", total.Seconds()),
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", mixSampleRate),
	}
	for _, c := range clips {
		args = append(args, "-i", c.path)
	}
	starts := make([]time.Duration, len(clips))
	for i, c := range clips {
		starts[i] = c.start
	}
	args = append(args,
		"-filter_complex", delayMixGraph(starts),
		"-map", "[aout]",
		output,
	)

	if _, err := s.runner.Run(ctx, executor.Command{
		Name:    "ffmpeg",
		Args:    args,
		Timeout: s.timeout(),
	}); err != nil {
		log.Error("clip compositing failed", logging.Error(err))
		return Result{Skipped: skipped}
	}
	log.Info("voiceover composited",
		logging.Int("clips", len(clips)),
		logging.Int("skipped", skipped))
	return Result{Path: output, Mode: ModeSynchronized, Available: true, Skipped: skipped}
}

// generateSimple concatenates all caption text and renders one clip.
func (s *Synthesizer) generateSimple(ctx context.Context, backend Backend, segments []subtitles.Segment, workDir, language, mode string, log *slog.Logger) Result {
	text := strings.Join(subtitles.Texts(segments), " ")
	output := filepath.Join(workDir, "voiceover.wav")
	if err := s.synthesizeClip(ctx, backend, language, text, output); err != nil {
		log.Warn("simple synthesis failed, voiceover unavailable", logging.Error(err))
		return Result{}
	}
	log.Info("voiceover synthesized", logging.String("mode", mode))
	return Result{Path: output, Mode: mode, Available: true}
}

// delayMixGraph builds the filter_complex that delays each clip to its
// caption offset and mixes everything, including the silent base at
// input 0, then resamples to the target rate.
func delayMixGraph(starts []time.Duration) string {
	var graph strings.Builder
	labels := make([]string, 0, len(starts)+1)
	labels = append(labels, "[0:a]")
	for i, start := range starts {
		ms := start.Milliseconds()
		fmt.Fprintf(&graph, "[%d:a]adelay=%d|%d[d%d];", i+1, ms, ms, i+1)
		labels = append(labels, fmt.Sprintf("[d%d]", i+1))
	}
	fmt.Fprintf(&graph, "%samix=inputs=%d:duration=first:normalize=0,aresample=%d[aout]",
		strings.Join(labels, ""), len(labels), mixSampleRate)
	return graph.String()
}

// withText filters out empty caption segments.
func withText(segments []subtitles.Segment) []subtitles.Segment {
	kept := segments[:0:0]
	for _, segment := range segments {
		if !segment.IsEmpty() {
			kept = append(kept, segment)
		}
	}
	return kept
}
