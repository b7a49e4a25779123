package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipdub/internal/executor"
	"clipdub/internal/logging"
)

// synthesizeClip renders one text into an audio file through the
// backend's engine.
func (s *Synthesizer) synthesizeClip(ctx context.Context, backend Backend, language, text, output string) error {
	text = strings.TrimSpace(backend.NormalizeText(text))
	if text == "" {
		return fmt.Errorf("empty text")
	}
	switch backend.Kind {
	case BackendPiper:
		return s.runPiper(ctx, backend.Piper, text, output)
	case BackendEspeak:
		return s.runEspeak(ctx, backend.Espeak, language, text, output)
	default:
		return fmt.Errorf("no backend configured")
	}
}

func (s *Synthesizer) runPiper(ctx context.Context, cfg *PiperConfig, text, output string) error {
	model := cfg.Model
	if !strings.HasSuffix(model, ".onnx") {
		model += ".onnx"
	}
	modelPath := filepath.Join(s.cfg.Voice.VoicesDir, model)
	args := []string{
		"--model", modelPath,
		"--output_file", output,
	}
	speaker := cfg.Speaker
	if speaker < 0 && len(cfg.SpeakerCandidates) > 0 {
		speaker = s.probeSpeaker(modelPath, cfg.SpeakerCandidates)
	}
	if speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(speaker))
	}
	_, err := s.runner.Run(ctx, executor.Command{
		Name:    "piper",
		Args:    args,
		Stdin:   strings.NewReader(text),
		Timeout: s.timeout(),
	})
	return err
}

// probeSpeaker matches the first candidate against the speaker roster in
// the model's sidecar config. -1 leaves speaker selection to the model.
func (s *Synthesizer) probeSpeaker(modelPath string, candidates []string) int {
	roster, err := s.rosters.Get(modelPath, func() (map[string]int, error) {
		return loadSpeakerRoster(modelPath + ".json")
	})
	if err != nil {
		s.logger.Warn("speaker roster unavailable, using model default",
			logging.String("model", filepath.Base(modelPath)),
			logging.Error(err))
		return -1
	}
	for _, candidate := range candidates {
		if id, ok := roster[candidate]; ok {
			return id
		}
	}
	s.logger.Warn("no speaker candidate found in roster",
		logging.String("model", filepath.Base(modelPath)))
	return -1
}

func loadSpeakerRoster(configPath string) (map[string]int, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var sidecar struct {
		SpeakerIDMap map[string]int `json:"speaker_id_map"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(configPath), err)
	}
	return sidecar.SpeakerIDMap, nil
}

func (s *Synthesizer) runEspeak(ctx context.Context, cfg *EspeakConfig, language, text, output string) error {
	voice := language
	if cfg != nil && cfg.Voice != "" {
		voice = cfg.Voice
	}
	_, err := s.runner.Run(ctx, executor.Command{
		Name:    "espeak-ng",
		Args:    []string{"-v", voice, "-w", output, text},
		Timeout: s.timeout(),
	})
	return err
}

func (s *Synthesizer) timeout() time.Duration {
	return time.Duration(s.cfg.Voice.Timeout) * time.Second
}

// fallbackBackend is the universal engine used when the catalog has no
// entry for the language at all. It is keyed by language only.
func fallbackBackend() Backend {
	return Backend{Kind: BackendEspeak, Espeak: &EspeakConfig{}}
}
