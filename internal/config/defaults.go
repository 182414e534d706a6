package config

const (
	defaultConfigPath            = "~/.config/talkvault/config.toml"
	defaultInboxDir              = "~/talkvault/inbox"
	defaultArchiveDir            = "~/talkvault/archive"
	defaultDataDir               = "~/.local/share/talkvault"
	defaultLogDir                = "~/.local/share/talkvault/logs"
	defaultWhisperXCacheDir      = "~/.local/share/talkvault/cache/whisperx"
	defaultLLMProvider           = "local"
	defaultLocalBaseURL          = "http://127.0.0.1:11434/v1/chat/completions"
	defaultLLMTimeoutSeconds     = 300
	defaultLLMMaxRetries         = 3
	defaultLLMTemperature        = 0.3
	defaultModel                 = "local:qwen2.5:14b"
	defaultWhisperXModel         = "large-v3"
	defaultWhisperXVADMethod     = "silero"
	defaultTranscriptionLanguage = "ru"
	defaultPartSize              = 6000
	defaultOverlapSize           = 1500
	defaultMinPartSize           = 2000
	defaultLargeTextThreshold    = 10000
	defaultOutlineConcurrency    = 2
	defaultSectionConcurrency    = 2
	defaultTickerIntervalSeconds = 1.0
	defaultMaxProgress           = 95.0
	defaultCalibrationFile       = "calibration.json"
	defaultEventsSubjectPrefix   = "talkvault.progress"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogMaxSizeMB          = 50
	defaultLogMaxBackups         = 5
	defaultLogMaxAgeDays         = 60
)

// DefaultEstimates returns the per-stage time coefficients. The transcribe
// entry is expressed per 1000 video seconds, every other entry per 1000
// characters of input text.
func DefaultEstimates() map[string]Estimate {
	return map[string]Estimate{
		"parse":      {BaseSeconds: 0.5},
		"transcribe": {BaseSeconds: 10, Per1kSeconds: 150},
		"clean":      {BaseSeconds: 5, Per1kSeconds: 1.5},
		"outline":    {BaseSeconds: 5, Per1kSeconds: 0.8},
		"chunk":      {BaseSeconds: 10, Per1kSeconds: 2},
		"longread":   {BaseSeconds: 20, Per1kSeconds: 3},
		"summarize":  {BaseSeconds: 10, Per1kSeconds: 1},
		"story":      {BaseSeconds: 20, Per1kSeconds: 2.5},
		"save":       {BaseSeconds: 1},
	}
}

// DefaultWeights returns the share of overall progress owned by each
// processing status. The values sum to 100.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"parsing":      2,
		"transcribing": 45,
		"cleaning":     10,
		"chunking":     15,
		"longread":     16,
		"summarizing":  8,
		"saving":       4,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:   defaultInboxDir,
			ArchiveDir: defaultArchiveDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		LLM: LLM{
			DefaultProvider: defaultLLMProvider,
			LocalBaseURL:    defaultLocalBaseURL,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			MaxRetries:      defaultLLMMaxRetries,
			Temperature:     defaultLLMTemperature,
		},
		Models: Models{
			Clean:     defaultModel,
			Outline:   defaultModel,
			Chunk:     defaultModel,
			Longread:  defaultModel,
			Summarize: defaultModel,
			Story:     defaultModel,
		},
		Transcription: Transcription{
			WhisperXModel:     defaultWhisperXModel,
			WhisperXVADMethod: defaultWhisperXVADMethod,
			Language:          defaultTranscriptionLanguage,
			CacheDir:          defaultWhisperXCacheDir,
		},
		Pipeline: Pipeline{
			PartSize:             defaultPartSize,
			OverlapSize:          defaultOverlapSize,
			MinPartSize:          defaultMinPartSize,
			LargeTextThreshold:   defaultLargeTextThreshold,
			OutlineConcurrency:   defaultOutlineConcurrency,
			SectionConcurrency:   defaultSectionConcurrency,
			LeadershipEventTypes: []string{"ЛК", "Leadership"},
			CacheEnabled:         true,
		},
		Progress: Progress{
			TickerIntervalSeconds: defaultTickerIntervalSeconds,
			MaxProgress:           defaultMaxProgress,
			CalibrationFile:       defaultCalibrationFile,
			Estimates:             DefaultEstimates(),
			Weights:               DefaultWeights(),
		},
		Events: Events{
			SubjectPrefix: defaultEventsSubjectPrefix,
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
