package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"talkvault/internal/fileutil"
	"talkvault/internal/logging"
)

const maxSamplesPerStage = 50

// Calibrator collects actual/estimated duration ratios per stage. When a
// path is set, every recorded sample is persisted so coefficients can be
// tuned across runs.
type Calibrator struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	samples map[string][]float64
}

// NewCalibrator loads existing samples from path. An empty path keeps samples
// in memory only. A missing file starts empty; an unreadable one is logged
// and ignored.
func NewCalibrator(path string, logger *slog.Logger) *Calibrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Calibrator{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "calibration"),
		samples: make(map[string][]float64),
	}
	if path == "" {
		return c
	}
	if err := c.load(); err != nil {
		logging.WarnWithContext(c.logger, "failed to load calibration samples", "calibration_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the calibration file if it is corrupt"),
			logging.String(logging.FieldImpact, "calibration history starts empty"),
		)
	}
	return c
}

// Record adds one ratio sample for stage. Only the most recent samples are
// kept.
func (c *Calibrator) Record(stage string, ratio float64) {
	if c == nil || ratio <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	samples := append(c.samples[stage], ratio)
	if len(samples) > maxSamplesPerStage {
		samples = samples[len(samples)-maxSamplesPerStage:]
	}
	c.samples[stage] = samples
	c.logger.Debug("calibration sample recorded",
		logging.String(logging.FieldStage, stage),
		logging.Float64("ratio", ratio),
		logging.Int("samples", len(samples)),
	)
	if c.path == "" {
		return
	}
	if err := fileutil.WriteJSONAtomic(c.path, c.samples); err != nil {
		logging.WarnWithContext(c.logger, "failed to persist calibration samples", "calibration_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "sample kept in memory only"),
		)
	}
}

// Mean returns the average ratio recorded for stage and the number of
// samples behind it.
func (c *Calibrator) Mean(stage string) (float64, int) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	samples := c.samples[stage]
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples)), len(samples)
}

func (c *Calibrator) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read calibration file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var samples map[string][]float64
	if err := json.Unmarshal(data, &samples); err != nil {
		return fmt.Errorf("parse calibration file: %w", err)
	}
	for stage, values := range samples {
		c.samples[stage] = values
	}
	return nil
}
