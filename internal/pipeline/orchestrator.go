package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"talkvault/internal/archive"
	"talkvault/internal/config"
	"talkvault/internal/fallback"
	"talkvault/internal/generate"
	"talkvault/internal/logging"
	"talkvault/internal/media/ffprobe"
	"talkvault/internal/model"
	"talkvault/internal/progress"
	"talkvault/internal/services"
	"talkvault/internal/services/llm"
	"talkvault/internal/stage"
	"talkvault/internal/stagecache"
	"talkvault/internal/textsplit"
)

// Transcriber is the transcription capability.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath, workDir string) (model.RawTranscript, string, error)
	Model() string
}

// Parser turns a file path into video metadata.
type Parser interface {
	Parse(path string) (model.VideoMetadata, error)
}

// Saver persists a finished run.
type Saver interface {
	Save(ctx context.Context, bundle archive.Bundle) ([]string, error)
}

// DurationProbe returns the media duration of path in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// Deps are the collaborators of an Orchestrator. Config, LLM, Transcriber
// and Parser are required.
type Deps struct {
	Config      *config.Config
	LLM         llm.Client
	Transcriber Transcriber
	Parser      Parser
	// Archive defaults to an archive.Writer.
	Archive Saver
	// Cache is optional; without it nothing is cached or reused.
	Cache *stagecache.Cache
	// Estimator defaults to one built from Config.Progress.
	Estimator *progress.Estimator
	// Probe defaults to ffprobe.
	Probe  DurationProbe
	Logger *slog.Logger
}

// Update is one progress report.
type Update struct {
	// VideoID and ArchivePath are empty until the filename is parsed.
	VideoID          string
	ArchivePath      string
	Status           model.ProcessingStatus
	StageProgress    float64
	Overall          float64
	Message          string
	EstimatedSeconds float64
	ElapsedSeconds   float64
}

// ProgressFunc receives updates. It may be called from a ticker goroutine,
// but never concurrently.
type ProgressFunc func(Update)

// Orchestrator runs the pipeline.
type Orchestrator struct {
	cfg         *config.Config
	llm         llm.Client
	transcriber Transcriber
	parser      Parser
	archive     Saver
	cache       *stagecache.Cache
	estimator   *progress.Estimator
	weights     progress.Weights
	probe       DurationProbe
	generator   *generate.Generator
	splitter    *textsplit.Splitter
	fallback    fallback.Factory
	logger      *slog.Logger
}

// New validates deps and constructs an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Config == nil:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "config required", nil)
	case deps.LLM == nil:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "llm client required", nil)
	case deps.Transcriber == nil:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "transcriber required", nil)
	case deps.Parser == nil:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "filename parser required", nil)
	}
	logger := logging.NewComponentLogger(deps.Logger, "pipeline")
	cfg := deps.Config
	o := &Orchestrator{
		cfg:         cfg,
		llm:         deps.LLM,
		transcriber: deps.Transcriber,
		parser:      deps.Parser,
		archive:     deps.Archive,
		cache:       deps.Cache,
		estimator:   deps.Estimator,
		weights:     progress.WeightsFromConfig(cfg.Progress.Weights),
		probe:       deps.Probe,
		generator:   generate.New(deps.LLM, generate.OptionsFromConfig(cfg), deps.Logger),
		splitter: textsplit.New(textsplit.Options{
			PartSize:    cfg.Pipeline.PartSize,
			OverlapSize: cfg.Pipeline.OverlapSize,
			MinPartSize: cfg.Pipeline.MinPartSize,
		}),
		logger: logger,
	}
	if o.archive == nil {
		o.archive = archive.New(deps.Logger)
	}
	if o.estimator == nil {
		o.estimator = progress.FromConfig(cfg.Progress)
	}
	if o.probe == nil {
		binary := cfg.FFprobeBinary()
		o.probe = func(ctx context.Context, path string) (float64, error) {
			result, err := ffprobe.Inspect(ctx, binary, path)
			if err != nil {
				return 0, err
			}
			return result.DurationSeconds(), nil
		}
	}
	return o, nil
}

// runState is shared by the hooks of one Process or Rerun call.
type runState struct {
	mu       sync.Mutex
	notify   ProgressFunc
	weights  progress.Weights
	sampler  *logging.ProgressSampler
	logger   *slog.Logger
	reuse    bool
	degrade  bool
	degraded []string
	video    model.VideoMetadata
}

func (r *runState) setVideo(meta model.VideoMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video = meta
}

// stamp fills the video identity of u.
func (r *runState) stamp(u Update) Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.VideoID, u.ArchivePath = r.video.VideoID, r.video.ArchivePath
	return u
}

func (r *runState) callback(status model.ProcessingStatus, stageProgress float64, message string, estimated, elapsed float64) {
	update := r.stamp(Update{
		Status:           status,
		StageProgress:    stageProgress,
		Overall:          r.weights.Overall(status, stageProgress),
		Message:          message,
		EstimatedSeconds: estimated,
		ElapsedSeconds:   elapsed,
	})
	r.mu.Lock()
	shouldLog := r.sampler.ShouldLog(update.Overall, string(status))
	r.mu.Unlock()
	if shouldLog {
		r.logger.Info("progress",
			logging.String(logging.FieldEventType, "progress"),
			logging.String("status", string(status)),
			logging.Float64("stage_percent", stageProgress),
			logging.Float64("overall_percent", update.Overall),
		)
	}
	if r.notify != nil {
		r.notify(update)
	}
}

func (r *runState) markDegraded(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = append(r.degraded, name)
}

func (r *runState) degradedStages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.degraded...)
}

// Process runs the full pipeline for videoPath.
func (o *Orchestrator) Process(ctx context.Context, videoPath string, notify ProgressFunc) (*model.PipelineResult, error) {
	started := time.Now()
	run := &runState{
		notify:  notify,
		weights: o.weights,
		sampler: logging.NewProgressSampler(25),
		logger:  o.logger,
		reuse:   o.cache != nil && o.cfg.Pipeline.CacheEnabled,
		degrade: true,
	}
	if notify != nil {
		notify(Update{Status: model.StatusPending, Message: "Queued"})
	}

	stages, err := o.Stages(nil).BuildPipeline(StageSave)
	if err != nil {
		return nil, err
	}
	st := stage.NewState().WithMetadata(metaVideoPath, videoPath)
	final, err := stage.Run(ctx, stages, st, stage.Hooks{Logger: o.logger, Around: o.around(run)})
	if err != nil {
		o.fail(run, err)
		return nil, err
	}

	meta, err := stage.ResultAs[model.VideoMetadata](final, StageParse)
	if err != nil {
		return nil, err
	}
	transcribed, _ := stage.ResultAs[TranscribeResult](final, StageTranscribe)
	files, _ := stage.ResultAs[[]string](final, StageSave)
	chunks, _ := stage.ResultAs[model.TranscriptChunks](final, StageChunk)
	result := &model.PipelineResult{
		VideoID:         meta.VideoID,
		ArchivePath:     meta.ArchivePath,
		ContentType:     meta.ContentType,
		Files:           files,
		DegradedStages:  run.degradedStages(),
		ChunkCount:      len(chunks.Chunks),
		DurationSeconds: transcribed.Transcript.DurationSeconds,
		ElapsedSeconds:  time.Since(started).Seconds(),
	}
	if err := os.RemoveAll(o.workDir(meta)); err != nil {
		logging.WarnWithContext(o.logger, "work directory not removed", "work_dir_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "extracted audio left on disk"),
		)
	}
	if notify != nil {
		notify(run.stamp(Update{Status: model.StatusCompleted, StageProgress: 100, Overall: 100, Message: "Completed", ElapsedSeconds: result.ElapsedSeconds}))
	}
	o.logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.String(logging.FieldVideoID, result.VideoID),
		logging.Strings("degraded_stages", result.DegradedStages),
		logging.Int("chunks", result.ChunkCount),
		logging.Float64("elapsed_seconds", result.ElapsedSeconds),
	)
	return result, nil
}

func (o *Orchestrator) fail(run *runState, err error) {
	stageName, _ := services.StageOf(err)
	logging.ErrorWithContext(o.logger, "pipeline failed", "pipeline_failure",
		logging.String(logging.FieldStage, stageName),
		logging.Error(err),
	)
	if run.notify != nil {
		run.notify(run.stamp(Update{Status: model.StatusFailed, Message: err.Error()}))
	}
}

// around is the stage.Run hook: cache reuse, progress tracking, fallback
// substitution and cache writes.
func (o *Orchestrator) around(run *runState) func(context.Context, stage.Stage, *stage.State, func(context.Context) (any, error)) (any, error) {
	return func(ctx context.Context, s stage.Stage, st *stage.State, next func(context.Context) (any, error)) (any, error) {
		ps, ok := s.(*pipelineStage)
		if !ok {
			return next(ctx)
		}
		meta, hasMeta := stageMeta(st)
		if hasMeta {
			ctx = services.WithVideoID(ctx, meta.VideoID)
			run.setVideo(meta)
		}
		logger := logging.WithContext(ctx, o.logger)
		modelName := ps.modelName()
		inputHash := o.inputHash(st, ps, modelName)

		if run.reuse && hasMeta {
			if cached, ok := o.reuseCached(meta.ArchivePath, ps, inputHash, logger); ok {
				if !ps.quiet {
					run.callback(ps.status, 100, ps.message+" (cached)", 0, 0)
				}
				return cached, nil
			}
		}

		var cb progress.Callback
		if !ps.quiet {
			cb = run.callback
		}
		metric := ps.metric(ctx, st)
		result, err := progress.Track(ctx, o.estimator, ps.estimateKey, ps.status, metric, ps.message, cb, next)
		degraded := false
		if err != nil {
			if ps.fallback == nil || !run.degrade || ctx.Err() != nil {
				return nil, err
			}
			logging.WarnWithContext(logger, "stage degraded to fallback", "stage_degraded",
				logging.Error(services.Wrap(services.ErrDegraded, ps.name, "generate", "model output unusable", err)),
				logging.String("model", modelName),
				logging.String(logging.FieldImpact, "document built without the model"),
				logging.String(logging.FieldErrorHint, "check the LLM provider, then rerun the stage"),
			)
			result, err = ps.fallback(st)
			if err != nil {
				return nil, err
			}
			degraded = true
			run.markDegraded(ps.name)
			if cb != nil {
				cb(ps.status, 100, ps.message+" (fallback)", o.estimator.Estimate(ps.estimateKey, metric), 0)
			}
		}

		if o.cache != nil && ps.decode != nil && hasMeta {
			if _, err := o.cache.Save(ctx, meta.ArchivePath, ps.name, result, modelName, inputHash, map[string]any{"degraded": degraded}); err != nil {
				logging.WarnWithContext(logger, "stage result not cached", "cache_save_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "stage cannot be reused or rerun from cache"),
				)
			}
		}
		return result, nil
	}
}

func stageMeta(st *stage.State) (model.VideoMetadata, bool) {
	meta, err := stage.ResultAs[model.VideoMetadata](st, StageParse)
	return meta, err == nil && meta.ArchivePath != ""
}

// inputHash fingerprints the dependency results and model of a stage.
func (o *Orchestrator) inputHash(st *stage.State, ps *pipelineStage, modelName string) string {
	if ps.decode == nil {
		return ""
	}
	fingerprint := map[string]any{"model": modelName}
	for _, dep := range ps.deps {
		if value, err := st.Result(dep); err == nil {
			fingerprint[dep] = value
		}
	}
	hash, err := stagecache.ComputeHash(fingerprint)
	if err != nil {
		return ""
	}
	return hash
}

// reuseCached returns the current cached result of ps when its input hash
// still matches and it was not produced by a fallback.
func (o *Orchestrator) reuseCached(archivePath string, ps *pipelineStage, inputHash string, logger *slog.Logger) (any, bool) {
	if ps.decode == nil || inputHash == "" || o.cache.Invalidated(archivePath, ps.name, inputHash) {
		return nil, false
	}
	data, entry, err := o.cache.Load(archivePath, ps.name, 0)
	if err != nil || entry == nil {
		return nil, false
	}
	if degraded, _ := entry.Metadata["degraded"].(bool); degraded {
		return nil, false
	}
	value, err := ps.decode(data)
	if err == nil {
		err = usable(value)
	}
	if err != nil {
		logging.WarnWithContext(logger, "cached result unusable", "cache_decode_failed",
			logging.String(logging.FieldStage, ps.name),
			logging.Int("version", entry.Version),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stage recomputed"),
		)
		return nil, false
	}
	logger.Info("stage result reused from cache",
		logging.String(logging.FieldEventType, "cache_hit"),
		logging.Int("version", entry.Version),
	)
	return value, true
}

// usable rejects cached values that point at files no longer on disk.
func usable(value any) error {
	if tr, ok := value.(TranscribeResult); ok && tr.AudioPath != "" {
		if _, err := os.Stat(tr.AudioPath); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) videoSeconds(ctx context.Context, st *stage.State) float64 {
	meta, err := stage.ResultAs[model.VideoMetadata](st, StageParse)
	if err != nil {
		return 0
	}
	seconds, err := o.probe(ctx, meta.SourcePath)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "duration probe failed", "duration_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcription progress uses the base estimate"),
			logging.String(logging.FieldErrorHint, "check that ffprobe is installed"),
		)
		return 0
	}
	return seconds
}

func (o *Orchestrator) workDir(meta model.VideoMetadata) string {
	return filepath.Join(o.cfg.Paths.DataDir, "work", meta.VideoID)
}

// ErrNotRerunnable is returned by Rerun for stages that cannot run from cache.
var ErrNotRerunnable = errors.New("stage cannot be rerun")

// RerunnableStages lists the stages Rerun accepts.
var RerunnableStages = []string{StageClean, StageOutline, StageChunk, StageLongread, StageSummarize, StageStory}

// Rerun executes stageName again for the talk archived at archivePath. Its
// dependencies are read from their current cache versions and metadata.json;
// modelOverride, when set, replaces the configured model for this run. The
// new result becomes the current cache version. A failure is returned as is;
// reruns never fall back.
func (o *Orchestrator) Rerun(ctx context.Context, archivePath, stageName, modelOverride string, notify ProgressFunc) (stagecache.Entry, error) {
	if o.cache == nil {
		return stagecache.Entry{}, services.Wrap(services.ErrConfiguration, stageName, "rerun", "stage cache disabled", nil)
	}
	rerunnable := false
	for _, name := range RerunnableStages {
		rerunnable = rerunnable || name == stageName
	}
	if !rerunnable {
		return stagecache.Entry{}, fmt.Errorf("%w: %q", ErrNotRerunnable, stageName)
	}

	var meta model.VideoMetadata
	if err := readJSON(filepath.Join(archivePath, archive.MetadataFile), &meta); err != nil {
		return stagecache.Entry{}, services.Wrap(services.ErrNotFound, stageName, "rerun", "archive metadata unreadable", err)
	}
	meta.ArchivePath = archivePath

	registry := o.Stages(map[string]string{stageName: modelOverride})
	target, err := registry.Get(stageName)
	if err != nil {
		return stagecache.Entry{}, err
	}
	ps := target.(*pipelineStage)
	if ps.ShouldSkip(stage.NewState().WithResult(StageParse, meta)) {
		return stagecache.Entry{}, fmt.Errorf("%w: %q does not apply to %s talks", ErrNotRerunnable, stageName, meta.ContentType)
	}

	st := stage.NewState().WithResult(StageParse, meta)
	upstream, err := registry.BuildPipeline(stageName)
	if err != nil {
		return stagecache.Entry{}, err
	}
	for _, dep := range upstream {
		name := dep.Name()
		if name == StageParse || name == stageName {
			continue
		}
		data, entry, err := o.cache.Load(archivePath, name, 0)
		if err != nil || entry == nil {
			return stagecache.Entry{}, services.Wrap(services.ErrNotFound, stageName, "rerun", "no cached result for "+name, err)
		}
		value, err := dep.(*pipelineStage).decode(data)
		if err != nil {
			return stagecache.Entry{}, fmt.Errorf("decode cached %s: %w", name, err)
		}
		st = st.WithResult(name, value)
	}

	run := &runState{
		notify:  notify,
		weights: o.weights,
		sampler: logging.NewProgressSampler(25),
		logger:  o.logger,
	}
	final, err := stage.Run(ctx, []stage.Stage{target}, st, stage.Hooks{Logger: o.logger, Around: o.around(run)})
	if err != nil {
		o.fail(run, err)
		return stagecache.Entry{}, err
	}
	if !final.HasResult(stageName) {
		return stagecache.Entry{}, fmt.Errorf("%w: %q produced no result", ErrNotRerunnable, stageName)
	}
	manifest := o.cache.Manifest(archivePath)
	if manifest == nil {
		return stagecache.Entry{}, services.Wrap(services.ErrExternalTool, stageName, "rerun", "result was not cached", nil)
	}
	current, ok := manifest.Current(stageName)
	if !ok {
		return stagecache.Entry{}, services.Wrap(services.ErrExternalTool, stageName, "rerun", "result was not cached", nil)
	}
	o.logger.Info("stage rerun completed",
		logging.String(logging.FieldEventType, "stage_rerun"),
		logging.String(logging.FieldStage, stageName),
		logging.Int("version", current.Version),
		logging.String("model", current.ModelName),
	)
	return current, nil
}
