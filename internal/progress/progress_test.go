package progress

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkvault/internal/config"
	"talkvault/internal/model"
)

type update struct {
	status   model.ProcessingStatus
	progress float64
	message  string
}

type recorder struct {
	mu      sync.Mutex
	updates []update
}

func (r *recorder) callback(status model.ProcessingStatus, progress float64, message string, _, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update{status: status, progress: progress, message: message})
}

func (r *recorder) snapshot() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

func TestEstimateUsesLinearModel(t *testing.T) {
	est := FromConfig(config.Default().Progress)
	assert.InDelta(t, 10+3600.0/1000*150, est.Estimate("transcribe", 3600), 1e-9)
	assert.InDelta(t, 5+20000.0/1000*1.5, est.Estimate("clean", 20000), 1e-9)
	assert.Equal(t, 0.0, est.Estimate("unknown", 1000))
	assert.InDelta(t, 0.5, est.Estimate("parse", -5), 1e-9)
}

func TestTickerIsMonotonicCappedAndEndsAtHundred(t *testing.T) {
	est := NewEstimator(nil, WithInterval(2*time.Millisecond), WithMaxProgress(95))
	rec := &recorder{}

	ticker := est.StartTicker(context.Background(), model.StatusCleaning, 0.02, "cleaning", rec.callback)
	time.Sleep(60 * time.Millisecond)
	est.StopTicker(ticker, model.StatusCleaning, rec.callback, "cleaned", 0.02, 0.06)

	updates := rec.snapshot()
	require.GreaterOrEqual(t, len(updates), 2)
	last := updates[len(updates)-1]
	assert.Equal(t, 100.0, last.progress)
	assert.Equal(t, "cleaned", last.message)

	prev := 0.0
	for _, u := range updates[:len(updates)-1] {
		assert.LessOrEqual(t, u.progress, 95.0)
		assert.GreaterOrEqual(t, u.progress, prev)
		assert.Equal(t, model.StatusCleaning, u.status)
		prev = u.progress
	}
	hundreds := 0
	for _, u := range updates {
		if u.progress == 100 {
			hundreds++
		}
	}
	assert.Equal(t, 1, hundreds)

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, rec.snapshot(), len(updates), "no callbacks after stop")
}

func TestTickerCancelSkipsFinalUpdate(t *testing.T) {
	est := NewEstimator(nil, WithInterval(time.Millisecond))
	rec := &recorder{}
	ticker := est.StartTicker(context.Background(), model.StatusChunking, 10, "chunking", rec.callback)
	time.Sleep(5 * time.Millisecond)
	ticker.Cancel()
	ticker.Cancel()

	for _, u := range rec.snapshot() {
		assert.Less(t, u.progress, 100.0)
	}
	count := len(rec.snapshot())
	time.Sleep(5 * time.Millisecond)
	assert.Len(t, rec.snapshot(), count)
}

func TestTickerStopsWithParentContext(t *testing.T) {
	est := NewEstimator(nil, WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	ticker := est.StartTicker(ctx, model.StatusSaving, 1, "", nil)
	cancel()
	done := make(chan struct{})
	go func() {
		ticker.Cancel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker goroutine did not exit")
	}
}

func TestTrackRecordsCalibrationUnderStageKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	cal := NewCalibrator(path, nil)
	clock := &stepClock{now: time.Unix(0, 0), step: 15 * time.Second}
	est := NewEstimator(map[string]Coefficients{"outline": {BaseSeconds: 10}},
		WithCalibrator(cal), WithInterval(time.Hour), WithClock(clock.Now))

	_, err := Track(context.Background(), est, "outline", model.StatusChunking, 0, "", nil,
		func(context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)

	mean, n := cal.Mean("outline")
	require.Equal(t, 1, n)
	assert.InDelta(t, 1.5, mean, 1e-9)
	_, n = cal.Mean(string(model.StatusChunking))
	assert.Zero(t, n, "samples must be keyed by coefficient, not status")

	reloaded := NewCalibrator(path, nil)
	mean, n = reloaded.Mean("outline")
	require.Equal(t, 1, n)
	assert.InDelta(t, 1.5, mean, 1e-9)
}

func TestTrackSkipsCalibrationWithoutEstimate(t *testing.T) {
	cal := NewCalibrator("", nil)
	est := NewEstimator(nil, WithCalibrator(cal), WithInterval(time.Hour))

	_, err := Track(context.Background(), est, "unknown", model.StatusSaving, 100, "", nil,
		func(context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)
	_, n := cal.Mean("unknown")
	assert.Zero(t, n)
}

func TestEstimateAppliesCalibrationAfterEnoughSamples(t *testing.T) {
	cal := NewCalibrator("", nil)
	est := NewEstimator(map[string]Coefficients{"chunk": {BaseSeconds: 10, Per1kSeconds: 2}}, WithCalibrator(cal))

	est.Observe("chunk", 5000, 40)
	est.Observe("chunk", 5000, 40)
	assert.InDelta(t, 20, est.Estimate("chunk", 5000), 1e-9, "too few samples to calibrate")

	est.Observe("chunk", 5000, 40)
	assert.InDelta(t, 40, est.Estimate("chunk", 5000), 1e-9)

	// Ratios are taken against the uncalibrated model, so the factor holds steady.
	est.Observe("chunk", 5000, 40)
	assert.InDelta(t, 40, est.Estimate("chunk", 5000), 1e-9)
}

func TestEstimateClampsCalibrationFactor(t *testing.T) {
	cal := NewCalibrator("", nil)
	est := NewEstimator(map[string]Coefficients{"save": {BaseSeconds: 1}}, WithCalibrator(cal))
	for range 3 {
		est.Observe("save", 0, 100)
	}
	assert.InDelta(t, 4, est.Estimate("save", 0), 1e-9)
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// Now advances by step on every call.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

func TestTrackSuccessAndFailure(t *testing.T) {
	est := NewEstimator(nil, WithInterval(time.Hour))
	rec := &recorder{}

	value, err := Track(context.Background(), est, "summarize", model.StatusSummarizing, 5000, "summary", rec.callback,
		func(context.Context) (string, error) { return "done", nil })
	require.NoError(t, err)
	assert.Equal(t, "done", value)
	updates := rec.snapshot()
	require.Len(t, updates, 1)
	assert.Equal(t, 100.0, updates[0].progress)

	boom := errors.New("boom")
	_, err = Track(context.Background(), est, "summarize", model.StatusSummarizing, 5000, "summary", rec.callback,
		func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.snapshot(), 1, "failure must not emit a final update")
}

func TestOverallProgress(t *testing.T) {
	w := DefaultWeights()
	cases := []struct {
		status model.ProcessingStatus
		stage  float64
		want   float64
	}{
		{model.StatusPending, 50, 0},
		{model.StatusParsing, 0, 0},
		{model.StatusParsing, 100, 2},
		{model.StatusTranscribing, 50, 2 + 22.5},
		{model.StatusCleaning, 0, 47},
		{model.StatusChunking, 100, 72},
		{model.StatusLongread, 50, 80},
		{model.StatusSummarizing, 100, 96},
		{model.StatusStory, 50, 72 + 12},
		{model.StatusStory, 100, 96},
		{model.StatusSaving, 100, 100},
		{model.StatusSaving, 250, 100},
		{model.StatusCompleted, 0, 100},
	}
	for _, tc := range cases {
		got := w.Overall(tc.status, tc.stage)
		assert.Truef(t, math.Abs(got-tc.want) < 1e-9, "%s at %v: got %v want %v", tc.status, tc.stage, got, tc.want)
	}
}

func TestOverallIsMonotonicAcrossStages(t *testing.T) {
	w := DefaultWeights()
	prev := 0.0
	for _, status := range stageOrder {
		for _, p := range []float64{0, 25, 50, 95, 100} {
			got := w.Overall(status, p)
			assert.GreaterOrEqual(t, got, prev)
			prev = got
		}
	}
}
