package deps

import (
	"os"
	"path/filepath"
	"testing"

	"clipdub/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
}

func TestRequirementsSkipTranslationToolsWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Translate.DisableTranslation = true

	for _, req := range Requirements(cfg) {
		if req.Command == "argos-translate" || req.Command == "argospm" {
			t.Fatalf("translation tools should not be required: %+v", req)
		}
	}
}

func TestRequirementsMarkSynthesisOptional(t *testing.T) {
	for _, req := range Requirements(testsupport.NewConfig(t)) {
		switch req.Command {
		case "piper", "espeak-ng", "argos-translate", "argospm":
			if !req.Optional {
				t.Fatalf("%s must be optional", req.Command)
			}
		case "yt-dlp", "ffmpeg", "ffprobe", "whisper-ctranslate2":
			if req.Optional {
				t.Fatalf("%s must be required", req.Command)
			}
		}
	}
}
