package config

const (
	defaultWorkDir  = "~/.local/share/clipdub/work"
	defaultLogDir   = "~/.local/share/clipdub/logs"
	defaultCacheDir = "~/.cache/clipdub"
	defaultFontsDir = "/usr/share/fonts"

	defaultTelegramBaseURL        = "https://api.telegram.org"
	defaultTelegramRequestTimeout = 60

	defaultDownloadTimeout   = 600
	defaultDownloadMaxFileMB = 500
	defaultDownloadRetries   = 3

	defaultWhisperModel    = "base"
	defaultWhisperDevice   = "auto"
	defaultWhisperBeamSize = 5
	defaultWhisperTimeout  = 1800

	defaultTranslateTarget   = "en"
	defaultTranslateTimeout  = 900
	defaultPackageCacheTTL   = 3600
	defaultPivotLanguage     = "en"
	defaultDetectSampleLimit = 5

	defaultVoiceEngine   = "piper"
	defaultVoicesDir     = "~/.local/share/clipdub/voices"
	defaultVoiceGender   = "female"
	defaultVoiceTimeout  = 1800
	defaultOriginalGain  = "0.3"
	defaultVoiceoverGain = "1.0"

	defaultComposeStyle    = "modern_bold"
	defaultComposePosition = "bottom"
	defaultComposeCRF      = 23
	defaultComposePreset   = "medium"
	defaultComposeTimeout  = 1800

	defaultWorkers            = 2
	defaultQueuePollInterval  = 5
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultMinFreeDiskGiB     = 2
	defaultStatusBufferLength = 64

	defaultRetentionSchedule = "0 */6 * * *"
	defaultRetentionMaxAge   = 24

	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultLogMaxSizeMB  = 50
	defaultLogMaxBackups = 5
	defaultLogMaxAgeDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir,
			FontsDir: defaultFontsDir,
		},
		Telegram: Telegram{
			APIBaseURL:     defaultTelegramBaseURL,
			RequestTimeout: defaultTelegramRequestTimeout,
		},
		Download: Download{
			Timeout:           defaultDownloadTimeout,
			MaxFileMB:         defaultDownloadMaxFileMB,
			InstagramFallback: true,
			RetryAttempts:     defaultDownloadRetries,
		},
		Transcribe: Transcribe{
			Model:    defaultWhisperModel,
			Device:   defaultWhisperDevice,
			BeamSize: defaultWhisperBeamSize,
			Timeout:  defaultWhisperTimeout,
		},
		Translate: Translate{
			DefaultTarget:     defaultTranslateTarget,
			InstallOnDemand:   true,
			PackageCacheTTL:   defaultPackageCacheTTL,
			Timeout:           defaultTranslateTimeout,
			PivotLanguage:     defaultPivotLanguage,
			DetectSampleLimit: defaultDetectSampleLimit,
		},
		Voice: Voice{
			Engine:        defaultVoiceEngine,
			VoicesDir:     defaultVoicesDir,
			DefaultGender: defaultVoiceGender,
			Synchronized:  true,
			Timeout:       defaultVoiceTimeout,
			OriginalGain:  defaultOriginalGain,
			VoiceoverGain: defaultVoiceoverGain,
		},
		Compose: Compose{
			DefaultStyle:    defaultComposeStyle,
			DefaultPosition: defaultComposePosition,
			CRF:             defaultComposeCRF,
			Preset:          defaultComposePreset,
			Timeout:         defaultComposeTimeout,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			MinFreeDiskGiB:     defaultMinFreeDiskGiB,
			StatusBufferLength: defaultStatusBufferLength,
		},
		Retention: Retention{
			Enabled:     true,
			Schedule:    defaultRetentionSchedule,
			MaxAgeHours: defaultRetentionMaxAge,
		},
		Notifications: Notifications{
			Enabled:        true,
			ProgressEvents: true,
			Errors:         true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
