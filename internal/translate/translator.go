// Package translate rewrites caption files into a target language. It
// tries a registered direct engine for the exact language pair first,
// then the bridge engine with on-demand package installation, then a
// pivot through a common intermediate language. Translation failure is
// never fatal: the original captions are kept.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/abadojack/whatlanggo"

	"clipdub/internal/config"
	"clipdub/internal/language"
	"clipdub/internal/logging"
	"clipdub/internal/subtitles"
)

// Engine translates batches of caption texts for one language pair.
type Engine interface {
	TranslateBatch(ctx context.Context, texts []string, from, to string) ([]string, error)
}

// Bridge is an engine that can report and establish pair availability,
// typically by installing a language-pair package.
type Bridge interface {
	Engine
	Available(ctx context.Context, from, to string) bool
}

// Result describes the outcome of a translation pass.
type Result struct {
	Path           string
	SourceLanguage string
	TargetLanguage string
	Translated     bool
}

// Service orchestrates the translation strategy chain.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	direct map[string]Engine
	bridge Bridge

	// detect is replaced in tests.
	detect func(sample string) string
}

// NewService builds a translator around the given bridge engine. Direct
// engines are registered separately per pair.
func NewService(cfg *config.Config, logger *slog.Logger, bridge Bridge) *Service {
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "translate"),
		direct: make(map[string]Engine),
		bridge: bridge,
		detect: detectLanguage,
	}
}

// RegisterDirect installs a dedicated engine for one (from, to) pair. It
// is consulted before the bridge.
func (s *Service) RegisterDirect(from, to string, engine Engine) {
	s.direct[pairKey(from, to)] = engine
}

// TranslateSubtitles translates the captions at srtPath into targetLang,
// writing the result under workDir. The original path is returned
// unchanged when translation is unnecessary or impossible.
func (s *Service) TranslateSubtitles(ctx context.Context, srtPath, workDir, targetLang, sourceLang string) Result {
	keepOriginal := func(src, dst string) Result {
		return Result{Path: srtPath, SourceLanguage: src, TargetLanguage: dst}
	}

	if s.cfg.Translate.DisableTranslation {
		return keepOriginal(sourceLang, targetLang)
	}

	segments, err := subtitles.ParseSRTFile(srtPath)
	if err != nil || len(segments) == 0 {
		s.logger.Warn("no captions to translate", logging.Error(err))
		return keepOriginal(sourceLang, targetLang)
	}

	src := language.ToISO2(sourceLang)
	if sourceLang == "" || sourceLang == "auto" || src == "" {
		detected := s.detect(s.sampleText(segments))
		src = language.ToISO2(detected)
		s.logger.Info("detected source language",
			logging.String("detected", detected),
			logging.String(logging.FieldLanguage, src))
	}
	if src == "" {
		src = "en"
	}
	dst := language.ToISO2(targetLang)
	if dst == "" {
		dst = s.cfg.Translate.DefaultTarget
	}

	if language.Same(src, dst) {
		s.logger.Info("source and target match, skipping translation", logging.String(logging.FieldLanguage, dst))
		return keepOriginal(src, dst)
	}

	texts := subtitles.Texts(segments)
	translated, ok := s.translateBatch(ctx, texts, src, dst)

	pivot := s.cfg.Translate.PivotLanguage
	if !ok && !language.Same(src, pivot) && !language.Same(dst, pivot) {
		s.logger.Info("no direct translation path, pivoting",
			logging.String("from", src),
			logging.String("to", dst),
			logging.String("pivot", pivot))
		if viaPivot, pivotOK := s.translateBatch(ctx, texts, src, pivot); pivotOK {
			translated, ok = s.translateBatch(ctx, viaPivot, pivot, dst)
		}
	}

	if !ok {
		s.logger.Warn("translation unavailable, keeping original captions",
			logging.String("from", src),
			logging.String("to", dst))
		return keepOriginal(src, dst)
	}

	for i := range segments {
		segments[i].Text = translated[i]
	}
	outputPath := filepath.Join(workDir, "subtitles_"+dst+".srt")
	if err := subtitles.WriteSRTFile(outputPath, segments); err != nil {
		s.logger.Error("could not write translated captions", logging.Error(err))
		return keepOriginal(src, dst)
	}
	return Result{Path: outputPath, SourceLanguage: src, TargetLanguage: dst, Translated: true}
}

// translateBatch runs one pair through the strategy chain. A false
// return means the pair is unavailable, not that the task failed.
func (s *Service) translateBatch(ctx context.Context, texts []string, from, to string) ([]string, bool) {
	if language.Same(from, to) {
		return append([]string(nil), texts...), true
	}
	if len(texts) == 0 {
		return nil, true
	}

	if engine, ok := s.direct[pairKey(from, to)]; ok {
		translated, err := engine.TranslateBatch(ctx, texts, from, to)
		if err == nil && len(translated) == len(texts) {
			return translated, true
		}
		if err == nil {
			err = fmt.Errorf("engine returned %d lines for %d inputs", len(translated), len(texts))
		}
		s.logger.Warn("direct engine failed, trying bridge",
			logging.String("from", from),
			logging.String("to", to),
			logging.Error(err))
	}

	if s.bridge == nil || !s.bridge.Available(ctx, from, to) {
		return nil, false
	}
	translated, err := s.bridge.TranslateBatch(ctx, texts, from, to)
	if err == nil && len(translated) != len(texts) {
		err = fmt.Errorf("bridge returned %d lines for %d inputs", len(translated), len(texts))
	}
	if err != nil {
		s.logger.Warn("bridge translation failed",
			logging.String("from", from),
			logging.String("to", to),
			logging.Error(err))
		return nil, false
	}
	return translated, true
}

// sampleText joins the leading caption texts for language detection.
func (s *Service) sampleText(segments []subtitles.Segment) string {
	limit := s.cfg.Translate.DetectSampleLimit
	if limit <= 0 {
		limit = 5
	}
	if len(segments) < limit {
		limit = len(segments)
	}
	return strings.Join(subtitles.Texts(segments[:limit]), " ")
}

func detectLanguage(sample string) string {
	if strings.TrimSpace(sample) == "" {
		return "en"
	}
	info := whatlanggo.Detect(sample)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return "en"
}

func pairKey(from, to string) string {
	return from + ">" + to
}
