package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeModels()
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeProgress()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.DefaultProvider = strings.ToLower(strings.TrimSpace(c.LLM.DefaultProvider))
	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = defaultLLMProvider
	}
	c.LLM.LocalBaseURL = strings.TrimSpace(c.LLM.LocalBaseURL)
	if c.LLM.LocalBaseURL == "" {
		c.LLM.LocalBaseURL = defaultLocalBaseURL
	}
	c.LLM.LocalAPIKey = strings.TrimSpace(c.LLM.LocalAPIKey)
	if c.LLM.LocalAPIKey == "" {
		if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.LocalAPIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.GeminiAPIKey = strings.TrimSpace(c.LLM.GeminiAPIKey)
	if c.LLM.GeminiAPIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.LLM.GeminiAPIKey = strings.TrimSpace(value)
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxRetries < 0 {
		c.LLM.MaxRetries = 0
	}
}

func (c *Config) normalizeModels() {
	fill := func(value *string) {
		*value = strings.TrimSpace(*value)
		if *value == "" {
			*value = defaultModel
		}
	}
	fill(&c.Models.Clean)
	fill(&c.Models.Outline)
	fill(&c.Models.Chunk)
	fill(&c.Models.Longread)
	fill(&c.Models.Summarize)
	fill(&c.Models.Story)
}

func (c *Config) normalizeTranscription() error {
	c.Transcription.WhisperXModel = strings.TrimSpace(c.Transcription.WhisperXModel)
	if c.Transcription.WhisperXModel == "" {
		c.Transcription.WhisperXModel = defaultWhisperXModel
	}
	c.Transcription.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.WhisperXVADMethod))
	if c.Transcription.WhisperXVADMethod == "" {
		c.Transcription.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.WhisperXHuggingFace = strings.TrimSpace(c.Transcription.WhisperXHuggingFace)
	if c.Transcription.WhisperXHuggingFace == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.WhisperXHuggingFace = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.WhisperXHuggingFace = strings.TrimSpace(value)
		}
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if strings.TrimSpace(c.Transcription.CacheDir) == "" {
		c.Transcription.CacheDir = defaultWhisperXCacheDir
	}
	var err error
	if c.Transcription.CacheDir, err = expandPath(c.Transcription.CacheDir); err != nil {
		return fmt.Errorf("transcription.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.PartSize <= 0 {
		c.Pipeline.PartSize = defaultPartSize
	}
	if c.Pipeline.OverlapSize < 0 {
		c.Pipeline.OverlapSize = 0
	}
	if c.Pipeline.MinPartSize < 0 {
		c.Pipeline.MinPartSize = 0
	}
	if c.Pipeline.LargeTextThreshold <= 0 {
		c.Pipeline.LargeTextThreshold = defaultLargeTextThreshold
	}
	if c.Pipeline.OutlineConcurrency <= 0 {
		c.Pipeline.OutlineConcurrency = defaultOutlineConcurrency
	}
	if c.Pipeline.SectionConcurrency <= 0 {
		c.Pipeline.SectionConcurrency = defaultSectionConcurrency
	}
	types := make([]string, 0, len(c.Pipeline.LeadershipEventTypes))
	for _, value := range c.Pipeline.LeadershipEventTypes {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			types = append(types, trimmed)
		}
	}
	c.Pipeline.LeadershipEventTypes = types
}

func (c *Config) normalizeProgress() {
	if c.Progress.TickerIntervalSeconds <= 0 {
		c.Progress.TickerIntervalSeconds = defaultTickerIntervalSeconds
	}
	if c.Progress.MaxProgress <= 0 || c.Progress.MaxProgress > 100 {
		c.Progress.MaxProgress = defaultMaxProgress
	}
	if strings.TrimSpace(c.Progress.CalibrationFile) == "" {
		c.Progress.CalibrationFile = defaultCalibrationFile
	}
	if !filepath.IsAbs(c.Progress.CalibrationFile) {
		c.Progress.CalibrationFile = filepath.Join(c.Paths.DataDir, c.Progress.CalibrationFile)
	}

	// Stages missing from a partial [progress.estimates] table keep their defaults.
	estimates := DefaultEstimates()
	for stage, estimate := range c.Progress.Estimates {
		estimates[strings.ToLower(strings.TrimSpace(stage))] = estimate
	}
	c.Progress.Estimates = estimates

	if len(c.Progress.Weights) == 0 {
		c.Progress.Weights = DefaultWeights()
	} else {
		weights := make(map[string]float64, len(c.Progress.Weights))
		for status, weight := range c.Progress.Weights {
			weights[strings.ToLower(strings.TrimSpace(status))] = weight
		}
		c.Progress.Weights = weights
	}
}

func (c *Config) normalizeEvents() {
	c.Events.NATSURL = strings.TrimSpace(c.Events.NATSURL)
	if c.Events.NATSURL == "" {
		if value, ok := os.LookupEnv("NATS_URL"); ok {
			c.Events.NATSURL = strings.TrimSpace(value)
		}
	}
	c.Events.SubjectPrefix = strings.Trim(strings.TrimSpace(c.Events.SubjectPrefix), ".")
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = defaultEventsSubjectPrefix
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
