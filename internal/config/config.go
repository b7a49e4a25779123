package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	CacheDir string `toml:"cache_dir"`
	FontsDir string `toml:"fonts_dir"`
}

// Telegram contains Bot API connection settings.
type Telegram struct {
	BotToken       string  `toml:"bot_token"`
	APIBaseURL     string  `toml:"api_base_url"`
	RequestTimeout int     `toml:"request_timeout"`
	AdminChatIDs   []int64 `toml:"admin_chat_ids"`
}

// Download contains settings for fetching source videos.
type Download struct {
	Timeout           int    `toml:"timeout"`
	MaxFileMB         int    `toml:"max_file_mb"`
	Proxy             string `toml:"proxy"`
	CookiesFile       string `toml:"cookies_file"`
	InstagramFallback bool   `toml:"instagram_fallback"`
	RetryAttempts     int    `toml:"retry_attempts"`
}

// Transcribe contains speech recognition settings.
type Transcribe struct {
	Model       string `toml:"model"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	Timeout     int    `toml:"timeout"`
	BeamSize    int    `toml:"beam_size"`
}

// Translate contains subtitle translation settings.
type Translate struct {
	DefaultTarget      string `toml:"default_target"`
	InstallOnDemand    bool   `toml:"install_on_demand"`
	PackageCacheTTL    int    `toml:"package_cache_ttl"`
	Timeout            int    `toml:"timeout"`
	PivotLanguage      string `toml:"pivot_language"`
	DetectSampleLimit  int    `toml:"detect_sample_limit"`
	DisableTranslation bool   `toml:"disable_translation"`
}

// Voice contains speech synthesis settings.
type Voice struct {
	Engine        string `toml:"engine"`
	VoicesDir     string `toml:"voices_dir"`
	DefaultGender string `toml:"default_gender"`
	Synchronized  bool   `toml:"synchronized"`
	Timeout       int    `toml:"timeout"`
	OriginalGain  string `toml:"original_gain"`
	VoiceoverGain string `toml:"voiceover_gain"`
}

// Compose contains video compositing settings.
type Compose struct {
	DefaultStyle    string `toml:"default_style"`
	DefaultPosition string `toml:"default_position"`
	WatermarkText   string `toml:"watermark_text"`
	CRF             int    `toml:"crf"`
	Preset          string `toml:"preset"`
	Timeout         int    `toml:"timeout"`
}

// Workflow contains daemon timing and concurrency settings.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MinFreeDiskGiB     int `toml:"min_free_disk_gib"`
	StatusBufferLength int `toml:"status_buffer_length"`
}

// Retention contains workspace cleanup settings.
type Retention struct {
	Enabled     bool   `toml:"enabled"`
	Schedule    string `toml:"schedule"`
	MaxAgeHours int    `toml:"max_age_hours"`
}

// Notifications controls progress message delivery back to the requester.
type Notifications struct {
	Enabled        bool `toml:"enabled"`
	ProgressEvents bool `toml:"progress_events"`
	Errors         bool `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for clipdub.
//
// Configuration sections by subsystem:
//   - Paths: working, cache, font, and log directories
//   - Telegram: Bot API connection for file transfer and status updates
//   - Download: yt-dlp and Instagram fallback behavior
//   - Transcribe: whisper model, device, and decoding settings
//   - Translate: target language, package installation, pivot fallback
//   - Voice: synthesis engine, voice catalog, mixing gains
//   - Compose: subtitle style defaults and encoder settings
//   - Workflow: worker pool size, polling intervals, heartbeats
//   - Retention: scheduled workspace sweep
//   - Notifications: requester-facing progress messages
//   - Logging: format, level, rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Download      Download      `toml:"download"`
	Transcribe    Transcribe    `toml:"transcribe"`
	Translate     Translate     `toml:"translate"`
	Voice         Voice         `toml:"voice"`
	Compose       Compose       `toml:"compose"`
	Workflow      Workflow      `toml:"workflow"`
	Retention     Retention     `toml:"retention"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipdub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/clipdub/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipdub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Voice.VoicesDir) != "" {
		// Best-effort so a missing voice catalog falls through to espeak.
		_ = os.MkdirAll(c.Voice.VoicesDir, 0o755)
	}
	return nil
}

// QueueDatabasePath returns the SQLite database location inside the work
// directory.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.WorkDir, "queue.db")
}

// LockFilePath returns the daemon lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.WorkDir, "clipdubd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
