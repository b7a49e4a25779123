package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTelegram(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	c.normalizeTranscribe()
	c.normalizeTranslate()
	if err := c.normalizeVoice(); err != nil {
		return err
	}
	c.normalizeCompose()
	c.normalizeWorkflow()
	c.normalizeRetention()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FontsDir) == "" {
		c.Paths.FontsDir = defaultFontsDir
	}
	if c.Paths.FontsDir, err = expandPath(c.Paths.FontsDir); err != nil {
		return fmt.Errorf("paths.fonts_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() error {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		}
	}
	c.Telegram.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIBaseURL), "/")
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = defaultTelegramBaseURL
	}
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultTelegramRequestTimeout
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	var err error
	c.Download.Proxy = strings.TrimSpace(c.Download.Proxy)
	if c.Download.Proxy == "" {
		if value, ok := os.LookupEnv("CLIPDUB_PROXY"); ok {
			c.Download.Proxy = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Download.CookiesFile) != "" {
		if c.Download.CookiesFile, err = expandPath(c.Download.CookiesFile); err != nil {
			return fmt.Errorf("download.cookies_file: %w", err)
		}
	}
	if c.Download.Timeout <= 0 {
		c.Download.Timeout = defaultDownloadTimeout
	}
	if c.Download.MaxFileMB <= 0 {
		c.Download.MaxFileMB = defaultDownloadMaxFileMB
	}
	if c.Download.RetryAttempts <= 0 {
		c.Download.RetryAttempts = defaultDownloadRetries
	}
	return nil
}

func (c *Config) normalizeTranscribe() {
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultWhisperModel
	}
	c.Transcribe.Device = strings.ToLower(strings.TrimSpace(c.Transcribe.Device))
	switch c.Transcribe.Device {
	case "auto", "cuda", "cpu":
	default:
		c.Transcribe.Device = defaultWhisperDevice
	}
	c.Transcribe.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcribe.ComputeType))
	if c.Transcribe.BeamSize <= 0 {
		c.Transcribe.BeamSize = defaultWhisperBeamSize
	}
	if c.Transcribe.Timeout <= 0 {
		c.Transcribe.Timeout = defaultWhisperTimeout
	}
}

func (c *Config) normalizeTranslate() {
	c.Translate.DefaultTarget = strings.ToLower(strings.TrimSpace(c.Translate.DefaultTarget))
	if c.Translate.DefaultTarget == "" {
		c.Translate.DefaultTarget = defaultTranslateTarget
	}
	c.Translate.PivotLanguage = strings.ToLower(strings.TrimSpace(c.Translate.PivotLanguage))
	if c.Translate.PivotLanguage == "" {
		c.Translate.PivotLanguage = defaultPivotLanguage
	}
	if c.Translate.PackageCacheTTL <= 0 {
		c.Translate.PackageCacheTTL = defaultPackageCacheTTL
	}
	if c.Translate.Timeout <= 0 {
		c.Translate.Timeout = defaultTranslateTimeout
	}
	if c.Translate.DetectSampleLimit <= 0 {
		c.Translate.DetectSampleLimit = defaultDetectSampleLimit
	}
}

func (c *Config) normalizeVoice() error {
	var err error
	c.Voice.Engine = strings.ToLower(strings.TrimSpace(c.Voice.Engine))
	switch c.Voice.Engine {
	case "piper", "espeak":
	default:
		c.Voice.Engine = defaultVoiceEngine
	}
	if strings.TrimSpace(c.Voice.VoicesDir) == "" {
		c.Voice.VoicesDir = defaultVoicesDir
	}
	if c.Voice.VoicesDir, err = expandPath(c.Voice.VoicesDir); err != nil {
		return fmt.Errorf("voice.voices_dir: %w", err)
	}
	c.Voice.DefaultGender = strings.ToLower(strings.TrimSpace(c.Voice.DefaultGender))
	switch c.Voice.DefaultGender {
	case "male", "female":
	default:
		c.Voice.DefaultGender = defaultVoiceGender
	}
	if c.Voice.Timeout <= 0 {
		c.Voice.Timeout = defaultVoiceTimeout
	}
	if strings.TrimSpace(c.Voice.OriginalGain) == "" {
		c.Voice.OriginalGain = defaultOriginalGain
	}
	if strings.TrimSpace(c.Voice.VoiceoverGain) == "" {
		c.Voice.VoiceoverGain = defaultVoiceoverGain
	}
	return nil
}

func (c *Config) normalizeCompose() {
	c.Compose.DefaultStyle = strings.ToLower(strings.TrimSpace(c.Compose.DefaultStyle))
	if c.Compose.DefaultStyle == "" {
		c.Compose.DefaultStyle = defaultComposeStyle
	}
	c.Compose.DefaultPosition = strings.ToLower(strings.TrimSpace(c.Compose.DefaultPosition))
	if c.Compose.DefaultPosition == "" {
		c.Compose.DefaultPosition = defaultComposePosition
	}
	if c.Compose.CRF <= 0 {
		c.Compose.CRF = defaultComposeCRF
	}
	c.Compose.Preset = strings.TrimSpace(c.Compose.Preset)
	if c.Compose.Preset == "" {
		c.Compose.Preset = defaultComposePreset
	}
	if c.Compose.Timeout <= 0 {
		c.Compose.Timeout = defaultComposeTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.MinFreeDiskGiB < 0 {
		c.Workflow.MinFreeDiskGiB = 0
	}
	if c.Workflow.StatusBufferLength <= 0 {
		c.Workflow.StatusBufferLength = defaultStatusBufferLength
	}
}

func (c *Config) normalizeRetention() {
	c.Retention.Schedule = strings.TrimSpace(c.Retention.Schedule)
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = defaultRetentionSchedule
	}
	if c.Retention.MaxAgeHours <= 0 {
		c.Retention.MaxAgeHours = defaultRetentionMaxAge
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
