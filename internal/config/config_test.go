package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipdub/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokenAndExpandsPaths(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:test-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "clipdub", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Telegram.BotToken != "123:test-token" {
		t.Fatalf("expected bot token from env, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.APIBaseURL != "https://api.telegram.org" {
		t.Fatalf("unexpected api base url: %q", cfg.Telegram.APIBaseURL)
	}
	if cfg.Transcribe.Device != "auto" {
		t.Fatalf("expected device auto by default, got %q", cfg.Transcribe.Device)
	}
	if cfg.Translate.DefaultTarget != "en" {
		t.Fatalf("expected default target en, got %q", cfg.Translate.DefaultTarget)
	}
	if !cfg.Voice.Synchronized {
		t.Fatal("expected synchronized voiceover by default")
	}
	if cfg.Workflow.HeartbeatInterval != config.Default().Workflow.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Workflow.HeartbeatInterval)
	}
	if got := cfg.QueueDatabasePath(); got != filepath.Join(wantWork, "queue.db") {
		t.Fatalf("unexpected queue database path: %q", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.CacheDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "clipdub.toml")

	type payload struct {
		Telegram struct {
			BotToken string `toml:"bot_token"`
		} `toml:"telegram"`
		Transcribe struct {
			Model  string `toml:"model"`
			Device string `toml:"device"`
		} `toml:"transcribe"`
		Workflow struct {
			Workers           int `toml:"workers"`
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Telegram.BotToken = "456:abc"
	custom.Transcribe.Model = "large-v3"
	custom.Transcribe.Device = "cuda"
	custom.Workflow.Workers = 4
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Telegram.BotToken != "456:abc" {
		t.Fatalf("expected bot token from file, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Transcribe.Model != "large-v3" {
		t.Fatalf("expected model override, got %q", cfg.Transcribe.Model)
	}
	if cfg.Transcribe.Device != "cuda" {
		t.Fatalf("expected device override, got %q", cfg.Transcribe.Device)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Workflow.HeartbeatTimeout)
	}
}

func TestEnvVarOverridesConfigFileForToken(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "clipdub.toml")

	if err := os.WriteFile(configPath, []byte("[telegram]\nbot_token = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Fatalf("expected bot token from env, got %q", cfg.Telegram.BotToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "bot_token") {
		t.Fatalf("sample config missing bot_token entry: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "clipdub") {
		t.Fatalf("expected work dir to contain clipdub, got %q", cfg.Paths.WorkDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.BotToken = "token"
	cfg.Workflow.HeartbeatInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for heartbeat interval")
	}

	cfg = config.Default()
	cfg.Telegram.BotToken = "token"
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when timeout <= interval")
	}

	cfg = config.Default()
	cfg.Telegram.BotToken = "token"
	cfg.Transcribe.ComputeType = "bf16"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported compute type")
	}

	cfg = config.Default()
	cfg.Telegram.BotToken = "token"
	cfg.Retention.Schedule = "not a cron line"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid retention schedule")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}
