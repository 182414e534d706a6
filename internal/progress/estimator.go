package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"talkvault/internal/config"
	"talkvault/internal/model"
)

const (
	defaultInterval    = time.Second
	defaultMaxProgress = 95.0

	minCalibrationSamples = 3
	minCalibrationFactor  = 0.25
	maxCalibrationFactor  = 4.0
)

// Callback receives progress updates. progress is in [0, 100].
type Callback func(status model.ProcessingStatus, progress float64, message string, estimatedSeconds, elapsedSeconds float64)

// Coefficients is the linear time model of one stage:
// seconds = BaseSeconds + metric/1000*Per1kSeconds.
type Coefficients struct {
	BaseSeconds  float64
	Per1kSeconds float64
}

// Estimator computes stage estimates and drives tickers.
type Estimator struct {
	coefficients map[string]Coefficients
	interval     time.Duration
	maxProgress  float64
	calibrator   *Calibrator
	now          func() time.Time
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithMaxProgress overrides the progress cap applied while ticking.
func WithMaxProgress(limit float64) Option {
	return func(e *Estimator) {
		if limit > 0 && limit < 100 {
			e.maxProgress = limit
		}
	}
}

// WithCalibrator records actual/estimated ratios in c and scales later
// estimates by them.
func WithCalibrator(c *Calibrator) Option {
	return func(e *Estimator) { e.calibrator = c }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEstimator builds an estimator over per-stage coefficients.
func NewEstimator(coefficients map[string]Coefficients, opts ...Option) *Estimator {
	e := &Estimator{
		coefficients: make(map[string]Coefficients, len(coefficients)),
		interval:     defaultInterval,
		maxProgress:  defaultMaxProgress,
		now:          time.Now,
	}
	for stage, c := range coefficients {
		e.coefficients[stage] = c
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConfig builds an estimator from the [progress] configuration section.
func FromConfig(cfg config.Progress, opts ...Option) *Estimator {
	coefficients := make(map[string]Coefficients, len(cfg.Estimates))
	for stage, est := range cfg.Estimates {
		coefficients[stage] = Coefficients{BaseSeconds: est.BaseSeconds, Per1kSeconds: est.Per1kSeconds}
	}
	base := []Option{
		WithInterval(time.Duration(cfg.TickerIntervalSeconds * float64(time.Second))),
		WithMaxProgress(cfg.MaxProgress),
	}
	return NewEstimator(coefficients, append(base, opts...)...)
}

// Estimate returns the expected duration in seconds of stage for an input of
// size metric (video seconds for transcription, characters otherwise).
// Once the calibrator holds enough samples for stage, the linear model is
// scaled by their mean actual/estimated ratio. Unknown stages estimate to zero.
func (e *Estimator) Estimate(stage string, metric float64) float64 {
	return e.baseline(stage, metric) * e.calibration(stage)
}

// baseline is the uncalibrated linear model.
func (e *Estimator) baseline(stage string, metric float64) float64 {
	c, ok := e.coefficients[stage]
	if !ok {
		return 0
	}
	if metric < 0 {
		metric = 0
	}
	return c.BaseSeconds + metric/1000*c.Per1kSeconds
}

func (e *Estimator) calibration(stage string) float64 {
	mean, n := e.calibrator.Mean(stage)
	if n < minCalibrationSamples {
		return 1
	}
	return math.Min(math.Max(mean, minCalibrationFactor), maxCalibrationFactor)
}

// Observe records how long stage actually took for an input of size metric.
// The ratio is taken against the uncalibrated model, so the calibration
// mean converges on the true correction factor instead of compounding.
func (e *Estimator) Observe(stage string, metric, actualSeconds float64) {
	if e.calibrator == nil || actualSeconds <= 0 {
		return
	}
	base := e.baseline(stage, metric)
	if base <= 0 {
		return
	}
	e.calibrator.Record(stage, actualSeconds/base)
}

// Ticker is a running progress reporter for one stage.
type Ticker struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started time.Time
}

// Elapsed returns the time since the ticker started.
func (t *Ticker) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.started)
}

// Cancel stops the ticker and waits for its goroutine. No further callbacks
// are made after Cancel returns. Safe to call more than once.
func (t *Ticker) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// StartTicker reports progress for status every interval until the ticker
// is stopped or ctx ends. Reported progress never exceeds the cap.
func (e *Estimator) StartTicker(ctx context.Context, status model.ProcessingStatus, estimatedSeconds float64, message string, cb Callback) *Ticker {
	tickCtx, cancel := context.WithCancel(ctx)
	t := &Ticker{cancel: cancel, done: make(chan struct{}), started: e.now()}
	go func() {
		defer close(t.done)
		if cb == nil {
			<-tickCtx.Done()
			return
		}
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				elapsed := e.now().Sub(t.started).Seconds()
				cb(status, e.progressFor(elapsed, estimatedSeconds), message, estimatedSeconds, elapsed)
			}
		}
	}()
	return t
}

// StopTicker cancels t, waits for it, then reports exactly one final update
// at 100.
func (e *Estimator) StopTicker(t *Ticker, status model.ProcessingStatus, cb Callback, message string, estimatedSeconds, actualSeconds float64) {
	t.Cancel()
	if cb != nil {
		cb(status, 100, message, estimatedSeconds, actualSeconds)
	}
}

func (e *Estimator) progressFor(elapsed, estimated float64) float64 {
	if estimated <= 0 {
		return e.maxProgress
	}
	p := elapsed / estimated * 100
	if p > e.maxProgress {
		return e.maxProgress
	}
	if p < 0 {
		return 0
	}
	return p
}

// Track estimates stage from metric and runs work between StartTicker and
// StopTicker. On success the final 100 update is emitted with the measured
// duration and the duration is observed for calibration under stage; on
// failure the ticker is cancelled without a final update and the error is
// returned.
func Track[T any](ctx context.Context, e *Estimator, stage string, status model.ProcessingStatus, metric float64, message string, cb Callback, work func(context.Context) (T, error)) (T, error) {
	estimated := e.Estimate(stage, metric)
	ticker := e.StartTicker(ctx, status, estimated, message, cb)
	result, err := work(ctx)
	if err != nil {
		ticker.Cancel()
		return result, err
	}
	actual := e.now().Sub(ticker.started).Seconds()
	e.StopTicker(ticker, status, cb, message, estimated, actual)
	e.Observe(stage, metric, actual)
	return result, nil
}
