package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTranscribe(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipdub/config.toml"
		}
		return fmt.Errorf("telegram.bot_token is required. Set TELEGRAM_BOT_TOKEN env var or edit %s (create with 'clipdub config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Telegram.APIBaseURL, "http://") && !strings.HasPrefix(c.Telegram.APIBaseURL, "https://") {
		return errors.New("telegram.api_base_url must be an http(s) URL")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"download.timeout":             c.Download.Timeout,
		"translate.timeout":            c.Translate.Timeout,
		"compose.timeout":              c.Compose.Timeout,
		"telegram.request_timeout":     c.Telegram.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateTranscribe() error {
	switch c.Transcribe.ComputeType {
	case "", "int8", "float16", "float32":
	default:
		return fmt.Errorf("transcribe.compute_type %q is not supported (use int8, float16, or float32)", c.Transcribe.ComputeType)
	}
	if c.Transcribe.Timeout <= 0 {
		return errors.New("transcribe.timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateVoice() error {
	if c.Voice.Engine == "piper" && strings.TrimSpace(c.Voice.VoicesDir) == "" {
		return errors.New("voice.voices_dir must be set when voice.engine is piper")
	}
	if c.Voice.Timeout <= 0 {
		return errors.New("voice.timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if !c.Retention.Enabled {
		return nil
	}
	if c.Retention.MaxAgeHours <= 0 {
		return errors.New("retention.max_age_hours must be positive when retention.enabled is true")
	}
	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		return fmt.Errorf("retention.schedule %q is not a valid cron expression: %w", c.Retention.Schedule, err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
