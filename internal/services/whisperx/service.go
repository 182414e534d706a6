package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	langpkg "talkvault/internal/language"
	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/services"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string, logger *slog.Logger) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
		logger:       logging.NewComponentLogger(logger, "whisperx"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe extracts the audio of videoPath into workDir and transcribes
// it. It returns the transcript and the path of the extracted audio, which
// the archive keeps.
func (s *Service) Transcribe(ctx context.Context, videoPath, workDir string) (model.RawTranscript, string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return model.RawTranscript{}, "", services.Wrap(services.ErrValidation, "transcribe", "input", "video path required", nil)
	}
	if workDir == "" {
		return model.RawTranscript{}, "", services.Wrap(services.ErrValidation, "transcribe", "input", "work directory required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return model.RawTranscript{}, "", fmt.Errorf("transcribe: ensure work dir: %w", err)
	}

	audioPath := filepath.Join(workDir, AudioFileName)
	started := time.Now()
	if err := s.run(ctx, s.ffmpegBinary, buildFFmpegExtractArgs(videoPath, audioPath)...); err != nil {
		return model.RawTranscript{}, "", services.Wrap(services.ErrExternalTool, "transcribe", "extract audio", "ffmpeg could not extract the audio stream", err)
	}
	s.logger.Debug("audio extracted",
		logging.String("audio_path", audioPath),
		logging.Duration("elapsed", time.Since(started)),
	)

	if err := s.run(ctx, UVXCommand, s.buildArgs(audioPath, workDir)...); err != nil {
		return model.RawTranscript{}, "", services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "whisperx transcription failed", err)
	}

	jsonPath := filepath.Join(workDir, strings.TrimSuffix(AudioFileName, filepath.Ext(AudioFileName))+".json")
	payload, err := loadPayload(jsonPath)
	if err != nil {
		return model.RawTranscript{}, "", services.Wrap(services.ErrExternalTool, "transcribe", "read output", "whisperx output missing or invalid", err)
	}

	transcript := model.RawTranscript{
		Model:    s.Model(),
		Segments: make([]model.TranscriptSegment, 0, len(payload.Segments)),
	}
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, model.TranscriptSegment{Start: seg.Start, End: seg.End, Text: text})
		transcript.DurationSeconds = max(transcript.DurationSeconds, seg.End)
	}
	if len(transcript.Segments) == 0 {
		return model.RawTranscript{}, "", services.Wrap(services.ErrValidation, "transcribe", "read output", "no speech recognised", nil)
	}
	transcript.Language = langpkg.Resolve(payload.Language, s.cfg.Language, transcript.FullText())

	s.logger.Info("transcription completed",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("segments", len(transcript.Segments)),
		logging.String("language", transcript.Language),
		logging.Duration("elapsed", time.Since(started)),
	)
	return transcript, audioPath, nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	env := os.Environ()
	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if s.cfg.CacheDir != "" {
		env = append(env, "HF_HOME="+s.cfg.CacheDir)
	}
	cmd.Env = env

	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// payload is the JSON structure of WhisperX output.
type payload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

func loadPayload(jsonPath string) (payload, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload{}, err
	}
	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		return payload{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	if out.Segments == nil {
		return payload{}, errors.New("whisperx json has no segments")
	}
	return out, nil
}
