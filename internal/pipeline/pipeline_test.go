package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkvault/internal/archive"
	"talkvault/internal/config"
	"talkvault/internal/filename"
	"talkvault/internal/model"
	"talkvault/internal/progress"
	"talkvault/internal/services"
	"talkvault/internal/services/llm"
	"talkvault/internal/stagecache"
)

const transcriptText = "Today we talk about product ownership. A team owns the result. " +
	"Metrics show whether the product works. We review them every week. " +
	"Hiring follows the product needs."

type fakeLLM struct {
	mu        sync.Mutex
	chats     int
	prompts   []string
	models    []string
	failWhen  string
	storySize int
}

func (f *fakeLLM) Generate(_ context.Context, prompt, modelName string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, modelName)
	failWhen := f.failWhen
	f.mu.Unlock()
	if failWhen != "" && strings.HasPrefix(prompt, failWhen) {
		return "", errors.New("model overloaded")
	}
	switch {
	case strings.HasPrefix(prompt, "Split part"):
		return `{"chunks": [{"topic": "Ownership", "text": "A team owns the result."}, {"topic": "Metrics", "text": "Metrics show whether the product works."}]}`, nil
	case strings.HasPrefix(prompt, "Plan a longread"):
		return `{"title": "Owning the product", "sections": [{"title": "Ownership", "focus": "who owns"}, {"title": "Metrics", "focus": "how to measure"}]}`, nil
	case strings.HasPrefix(prompt, "Write section"):
		return "Section prose about the talk.", nil
	case strings.HasPrefix(prompt, "Write the introduction"):
		return `{"introduction": "Why ownership matters.", "conclusion": "Own the result."}`, nil
	case strings.HasPrefix(prompt, "Summarize"):
		return `{"essence": "Teams own products.", "key_concepts": ["ownership"], "quotes": ["A team owns the result."], "actions": ["Review metrics weekly"]}`, nil
	case strings.HasPrefix(prompt, "Tell the story"):
		return `{"blocks": ["one", "two", "three", "four", "five", "six", "seven", "eight"]}`, nil
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message, _ string) (string, error) {
	f.mu.Lock()
	f.chats++
	f.mu.Unlock()
	return messages[len(messages)-1].Content, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats
}

type fakeTranscriber struct {
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, workDir string) (model.RawTranscript, string, error) {
	f.calls++
	if f.err != nil {
		return model.RawTranscript{}, "", f.err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return model.RawTranscript{}, "", err
	}
	audio := filepath.Join(workDir, "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		return model.RawTranscript{}, "", err
	}
	return model.RawTranscript{
		Segments:        []model.TranscriptSegment{{Start: 0, End: 42, Text: transcriptText}},
		Language:        "en",
		DurationSeconds: 42,
		Model:           "large-v3",
	}, audio, nil
}

func (f *fakeTranscriber) Model() string { return "large-v3" }

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) record(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

type harness struct {
	orch        *Orchestrator
	llm         *fakeLLM
	transcriber *fakeTranscriber
	cache       *stagecache.Cache
	cfg         *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithEstimator(t, progress.NewEstimator(nil, progress.WithInterval(5*time.Millisecond)))
}

func newHarnessWithEstimator(t *testing.T, estimator *progress.Estimator) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ArchiveDir = filepath.Join(root, "archive")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Models = config.Models{
		Clean: "local:clean", Outline: "local:outline", Chunk: "local:chunk",
		Longread: "local:longread", Summarize: "local:summary", Story: "local:story",
	}

	h := &harness{llm: &fakeLLM{}, transcriber: &fakeTranscriber{}, cache: stagecache.New(nil), cfg: &cfg}
	orch, err := New(Deps{
		Config:      &cfg,
		LLM:         h.llm,
		Transcriber: h.transcriber,
		Parser:      filename.New(cfg.Paths.ArchiveDir, cfg.Pipeline.LeadershipEventTypes),
		Cache:       h.cache,
		Estimator:   estimator,
		Probe:       func(context.Context, string) (float64, error) { return 42, nil },
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := config.Default()
	_, err := New(Deps{Config: &cfg})
	require.ErrorIs(t, err, services.ErrConfiguration)
}

func TestStagesResolveInExecutionOrder(t *testing.T) {
	h := newHarness(t)
	stages, err := h.orch.Stages(nil).BuildPipeline(StageSave)
	require.NoError(t, err)
	var names []string
	for _, s := range stages {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		StageParse, StageTranscribe, StageClean, StageOutline, StageChunk,
		StageLongread, StageStory, StageSummarize, StageSave,
	}, names)
}

func TestProcessEducationalTalk(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}

	result, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", rec.record)
	require.NoError(t, err)

	assert.Equal(t, model.ContentEducational, result.ContentType)
	assert.Empty(t, result.DegradedStages)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 42.0, result.DurationSeconds)
	assert.Contains(t, result.Files, archive.LongreadFile)
	assert.Contains(t, result.Files, archive.SummaryFile)
	assert.NotContains(t, result.Files, archive.StoryFile)
	assert.Contains(t, result.Files, "audio.wav")

	for _, name := range result.Files {
		assert.FileExists(t, filepath.Join(result.ArchivePath, name))
	}
	assert.NoDirExists(t, filepath.Join(h.cfg.Paths.DataDir, "work", result.VideoID))

	updates := rec.all()
	require.NotEmpty(t, updates)
	assert.Equal(t, model.StatusPending, updates[0].Status)
	last := updates[len(updates)-1]
	assert.Equal(t, model.StatusCompleted, last.Status)
	assert.Equal(t, 100.0, last.Overall)
	assert.Equal(t, result.VideoID, last.VideoID)
	assert.Equal(t, result.ArchivePath, last.ArchivePath)

	manifest := h.cache.Manifest(result.ArchivePath)
	require.NotNil(t, manifest)
	for _, name := range []string{StageTranscribe, StageClean, StageOutline, StageChunk, StageLongread, StageSummarize} {
		_, ok := manifest.Current(name)
		assert.True(t, ok, "expected cached %s", name)
	}
	_, ok := manifest.Current(StageStory)
	assert.False(t, ok)
}

func TestProcessLeadershipTalkWritesStory(t *testing.T) {
	h := newHarness(t)

	result, err := h.orch.Process(context.Background(), "/inbox/2024.04.02 ЛК Команда (Анна Смирнова).mp4", nil)
	require.NoError(t, err)

	assert.Equal(t, model.ContentLeadership, result.ContentType)
	assert.Contains(t, result.Files, archive.StoryFile)
	assert.NotContains(t, result.Files, archive.LongreadFile)
	assert.NotContains(t, result.Files, archive.SummaryFile)
}

func TestProcessDegradesFailedGenerationStage(t *testing.T) {
	h := newHarness(t)
	h.llm.failWhen = "Plan a longread"

	result, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{StageLongread}, result.DegradedStages)
	assert.True(t, result.Degraded())

	data, err := os.ReadFile(filepath.Join(result.ArchivePath, archive.LongreadFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "fallback")

	entry, ok := h.cache.Manifest(result.ArchivePath).Current(StageLongread)
	require.True(t, ok)
	assert.Equal(t, true, entry.Metadata["degraded"])
}

func TestProcessDegradesChunkingIndependently(t *testing.T) {
	h := newHarness(t)
	h.llm.failWhen = "Split part"
	rec := &recorder{}

	result, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", rec.record)
	require.NoError(t, err)
	assert.Equal(t, []string{StageChunk}, result.DegradedStages)
	assert.Positive(t, result.ChunkCount)

	manifest := h.cache.Manifest(result.ArchivePath)
	require.NotNil(t, manifest)
	entry, ok := manifest.Current(StageChunk)
	require.True(t, ok)
	assert.Equal(t, true, entry.Metadata["degraded"])
	for _, name := range []string{StageLongread, StageSummarize} {
		entry, ok := manifest.Current(name)
		require.True(t, ok, "expected cached %s", name)
		assert.Equal(t, false, entry.Metadata["degraded"], "%s should use the model", name)
	}

	var summary model.Summary
	_, err = h.cache.LoadInto(result.ArchivePath, StageSummarize, 0, &summary)
	require.NoError(t, err)
	assert.Equal(t, "local:summary", summary.ModelName)
	assert.False(t, summary.Degraded)

	data, err := os.ReadFile(filepath.Join(result.ArchivePath, archive.LongreadFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Section prose about the talk.")

	updates := rec.all()
	require.NotEmpty(t, updates)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Overall, updates[i-1].Overall,
			"overall progress went back at update %d (%s)", i, updates[i].Status)
	}
	assert.Equal(t, model.StatusCompleted, updates[len(updates)-1].Status)
}

func TestProcessRecordsCalibrationPerStage(t *testing.T) {
	cal := progress.NewCalibrator("", nil)
	cfg := config.Default()
	estimator := progress.FromConfig(cfg.Progress, progress.WithInterval(5*time.Millisecond), progress.WithCalibrator(cal))
	h := newHarnessWithEstimator(t, estimator)

	_, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", nil)
	require.NoError(t, err)

	for _, key := range []string{StageTranscribe, StageClean, StageOutline, StageChunk, StageLongread, StageSummarize} {
		_, n := cal.Mean(key)
		assert.Equal(t, 1, n, "expected one sample for %s", key)
	}
	for _, status := range []model.ProcessingStatus{model.StatusTranscribing, model.StatusChunking} {
		_, n := cal.Mean(string(status))
		assert.Zero(t, n, "no samples should be keyed by status %s", status)
	}
}

func TestProcessStopsOnTranscriptionFailure(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "exit status 1", nil)
	rec := &recorder{}

	_, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", rec.record)
	require.Error(t, err)
	require.ErrorIs(t, err, services.ErrExternalTool)
	stageName, ok := services.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageTranscribe, stageName)

	updates := rec.all()
	assert.Equal(t, model.StatusFailed, updates[len(updates)-1].Status)
	assert.Zero(t, h.llm.chatCount())
}

func TestProcessRejectsUnrecognizedFilename(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Process(context.Background(), "/inbox/holiday.mp4", nil)
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Zero(t, h.transcriber.calls)
}

func TestProcessReusesCachedStages(t *testing.T) {
	h := newHarness(t)
	path := "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4"

	_, err := h.orch.Process(context.Background(), path, nil)
	require.NoError(t, err)
	chats := h.llm.chatCount()
	require.Positive(t, chats)

	_, err = h.orch.Process(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, chats, h.llm.chatCount(), "clean should come from cache")
	assert.Equal(t, 2, h.transcriber.calls, "audio is gone, so transcription reruns")
}

func TestRerunCreatesNewVersionWithOverride(t *testing.T) {
	h := newHarness(t)
	result, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", nil)
	require.NoError(t, err)

	entry, err := h.orch.Rerun(context.Background(), result.ArchivePath, StageSummarize, "gemini:gemini-2.0-flash", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, "gemini:gemini-2.0-flash", entry.ModelName)
	assert.True(t, entry.IsCurrent)

	var summary model.Summary
	_, err = h.cache.LoadInto(result.ArchivePath, StageSummarize, 0, &summary)
	require.NoError(t, err)
	assert.Equal(t, "gemini:gemini-2.0-flash", summary.ModelName)
}

func TestRerunFailsInsteadOfFallingBack(t *testing.T) {
	h := newHarness(t)
	result, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", nil)
	require.NoError(t, err)

	h.llm.failWhen = "Summarize"
	_, err = h.orch.Rerun(context.Background(), result.ArchivePath, StageSummarize, "", nil)
	require.Error(t, err)
	assert.Len(t, h.cache.Entries(result.ArchivePath, StageSummarize), 1)
}

func TestRerunRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t)
	result, err := h.orch.Process(context.Background(), "/inbox/2024.03.15 ПШБ Продукт (Иван Петров).mp4", nil)
	require.NoError(t, err)

	_, err = h.orch.Rerun(context.Background(), result.ArchivePath, StageSave, "", nil)
	require.ErrorIs(t, err, ErrNotRerunnable)

	_, err = h.orch.Rerun(context.Background(), result.ArchivePath, StageStory, "", nil)
	require.ErrorIs(t, err, ErrNotRerunnable)

	_, err = h.orch.Rerun(context.Background(), t.TempDir(), StageClean, "", nil)
	require.ErrorIs(t, err, services.ErrNotFound)
}
