package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	InboxDir   string `toml:"inbox_dir"`
	ArchiveDir string `toml:"archive_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// LLM contains provider connection settings shared by every generation stage.
type LLM struct {
	// DefaultProvider is used for model names without a provider tag ("local" or "gemini").
	DefaultProvider string  `toml:"default_provider"`
	LocalBaseURL    string  `toml:"local_base_url"`
	LocalAPIKey     string  `toml:"local_api_key"`
	GeminiAPIKey    string  `toml:"gemini_api_key"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	MaxRetries      int     `toml:"max_retries"`
	Temperature     float64 `toml:"temperature"`
}

// Models maps each generation stage to a model name. A name may carry a
// provider tag prefix such as "gemini:" or "local:".
type Models struct {
	Clean     string `toml:"clean"`
	Outline   string `toml:"outline"`
	Chunk     string `toml:"chunk"`
	Longread  string `toml:"longread"`
	Summarize string `toml:"summarize"`
	Story     string `toml:"story"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	WhisperXModel       string `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod   string `toml:"whisperx_vad_method"`
	WhisperXHuggingFace string `toml:"whisperx_hf_token"`
	Language            string `toml:"language"`
	CacheDir            string `toml:"cache_dir"`
}

// Pipeline contains text-splitting thresholds and fan-out limits.
type Pipeline struct {
	PartSize             int      `toml:"part_size"`
	OverlapSize          int      `toml:"overlap_size"`
	MinPartSize          int      `toml:"min_part_size"`
	LargeTextThreshold   int      `toml:"large_text_threshold"`
	OutlineConcurrency   int      `toml:"outline_concurrency"`
	SectionConcurrency   int      `toml:"section_concurrency"`
	LeadershipEventTypes []string `toml:"leadership_event_types"`
	CacheEnabled         bool     `toml:"cache_enabled"`
}

// Estimate holds the empirical coefficients for one stage.
type Estimate struct {
	BaseSeconds  float64 `toml:"base_seconds"`
	Per1kSeconds float64 `toml:"per_1k_seconds"`
}

// Progress contains ticker behaviour, per-stage estimates, and overall weights.
type Progress struct {
	TickerIntervalSeconds float64             `toml:"ticker_interval_seconds"`
	MaxProgress           float64             `toml:"max_progress"`
	CalibrationFile       string              `toml:"calibration_file"`
	Estimates             map[string]Estimate `toml:"estimates"`
	Weights               map[string]float64  `toml:"weights"`
}

// Events contains progress event publishing settings.
type Events struct {
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for talkvault.
//
// Configuration sections by subsystem:
//   - Paths: inbox, archive, data and log directories
//   - LLM: local and Gemini provider connection settings
//   - Models: per-stage model names
//   - Transcription: WhisperX settings
//   - Pipeline: text splitting thresholds and concurrency limits
//   - Progress: ticker cadence, per-stage estimates, overall weights
//   - Events: NATS progress publishing
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Models        Models        `toml:"models"`
	Transcription Transcription `toml:"transcription"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Progress      Progress      `toml:"progress"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is loaded first so env fallbacks can see its values. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("talkvault.toml")
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

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArchiveDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobsDBPath returns the sqlite path of the job store.
func (c *Config) JobsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// IsLeadershipEvent reports whether an event type is classified as a
// leadership talk.
func (c *Config) IsLeadershipEvent(eventType string) bool {
	eventType = strings.TrimSpace(eventType)
	for _, candidate := range c.Pipeline.LeadershipEventTypes {
		if strings.EqualFold(candidate, eventType) {
			return true
		}
	}
	return false
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
