package pipeline

import (
	"context"
	"encoding/json"

	"talkvault/internal/archive"
	"talkvault/internal/generate"
	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/outline"
	"talkvault/internal/services"
	"talkvault/internal/stage"
	"talkvault/internal/textutil"
)

// Stage names.
const (
	StageParse      = "parse"
	StageTranscribe = "transcribe"
	StageClean      = "clean"
	StageOutline    = "outline"
	StageChunk      = "chunk"
	StageLongread   = "longread"
	StageSummarize  = "summarize"
	StageStory      = "story"
	StageSave       = "save"
)

// metaVideoPath is the State metadata key holding the input file.
const metaVideoPath = "video_path"

// TranscribeResult is the output of the transcribe stage.
type TranscribeResult struct {
	Transcript model.RawTranscript `json:"transcript"`
	AudioPath  string              `json:"audio_path"`
}

// OutlineResult is the output of the outline stage. Outline stays nil for
// texts at or below the large-text threshold.
type OutlineResult struct {
	Parts   []model.TextPart         `json:"parts"`
	Outline *model.TranscriptOutline `json:"outline,omitempty"`
}

// pipelineStage is the stage.Stage implementation used by the orchestrator.
// A stage with a nil fallback is fatal; a nil decode means its result is
// never cached.
type pipelineStage struct {
	name        string
	deps        []string
	status      model.ProcessingStatus
	estimateKey string
	message     string
	// quiet stages are timed and calibrated but emit no progress updates.
	quiet    bool
	metric   func(ctx context.Context, st *stage.State) float64
	run      func(ctx context.Context, st *stage.State) (any, error)
	skip     func(st *stage.State) bool
	fallback func(st *stage.State) (any, error)
	decode   func(data []byte) (any, error)
	model    func() string
}

func (s *pipelineStage) Name() string        { return s.name }
func (s *pipelineStage) DependsOn() []string { return s.deps }

func (s *pipelineStage) Execute(ctx context.Context, st *stage.State) (any, error) {
	return s.run(ctx, st)
}

func (s *pipelineStage) ShouldSkip(st *stage.State) bool {
	return s.skip != nil && s.skip(st)
}

func (s *pipelineStage) modelName() string {
	if s.model == nil {
		return ""
	}
	return s.model()
}

func decodeAs[T any](data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func isLeadership(st *stage.State) bool {
	meta, err := stage.ResultAs[model.VideoMetadata](st, StageParse)
	return err == nil && meta.IsLeadership()
}

func cleanedChars(_ context.Context, st *stage.State) float64 {
	cleaned, err := stage.ResultAs[model.CleanedTranscript](st, StageClean)
	if err != nil {
		return 0
	}
	return float64(textutil.RuneLen(cleaned.Text))
}

// inputs bundles the upstream results most stages read.
type inputs struct {
	meta    model.VideoMetadata
	raw     model.RawTranscript
	audio   string
	cleaned model.CleanedTranscript
	outline OutlineResult
}

func readInputs(st *stage.State, names ...string) (inputs, error) {
	var in inputs
	var err error
	for _, name := range names {
		switch name {
		case StageParse:
			in.meta, err = stage.ResultAs[model.VideoMetadata](st, StageParse)
		case StageTranscribe:
			var tr TranscribeResult
			tr, err = stage.ResultAs[TranscribeResult](st, StageTranscribe)
			in.raw, in.audio = tr.Transcript, tr.AudioPath
		case StageClean:
			in.cleaned, err = stage.ResultAs[model.CleanedTranscript](st, StageClean)
		case StageOutline:
			in.outline, err = stage.ResultAs[OutlineResult](st, StageOutline)
		}
		if err != nil {
			return inputs{}, err
		}
	}
	return in, nil
}

// Stages returns a registry holding every pipeline stage. overrides maps a
// stage name to the model it should use instead of the configured one.
func (o *Orchestrator) Stages(overrides map[string]string) *stage.Registry {
	gen := o.generator
	outlineModel := o.cfg.Models.Outline
	for name, modelName := range overrides {
		if name == StageOutline && modelName != "" {
			outlineModel = modelName
			continue
		}
		gen = gen.WithModel(name, modelName)
	}
	extractor := outline.New(o.llm, outline.Options{Model: outlineModel, Concurrency: o.cfg.Pipeline.OutlineConcurrency}, o.logger)

	registry := stage.NewRegistry()
	registry.MustRegister(
		&pipelineStage{
			name:        StageParse,
			status:      model.StatusParsing,
			estimateKey: StageParse,
			message:     "Parsing filename",
			metric:      func(context.Context, *stage.State) float64 { return 0 },
			run: func(_ context.Context, st *stage.State) (any, error) {
				path, _ := stage.MetadataAs[string](st, metaVideoPath)
				meta, err := o.parser.Parse(path)
				if err != nil {
					return nil, services.Wrap(services.ErrValidation, StageParse, "filename", "unrecognized video filename", err)
				}
				return meta, nil
			},
		},
		&pipelineStage{
			name:        StageTranscribe,
			deps:        []string{StageParse},
			status:      model.StatusTranscribing,
			estimateKey: StageTranscribe,
			message:     "Transcribing audio",
			metric:      o.videoSeconds,
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse)
				if err != nil {
					return nil, err
				}
				raw, audio, err := o.transcriber.Transcribe(ctx, in.meta.SourcePath, o.workDir(in.meta))
				if err != nil {
					return nil, err
				}
				return TranscribeResult{Transcript: raw, AudioPath: audio}, nil
			},
			decode: decodeAs[TranscribeResult],
			model:  o.transcriber.Model,
		},
		&pipelineStage{
			name:        StageClean,
			deps:        []string{StageTranscribe},
			status:      model.StatusCleaning,
			estimateKey: StageClean,
			message:     "Cleaning transcript",
			metric: func(_ context.Context, st *stage.State) float64 {
				in, err := readInputs(st, StageTranscribe)
				if err != nil {
					return 0
				}
				return float64(textutil.RuneLen(in.raw.FullText()))
			},
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageTranscribe)
				if err != nil {
					return nil, err
				}
				return gen.Clean(ctx, in.raw)
			},
			fallback: func(st *stage.State) (any, error) {
				in, err := readInputs(st, StageTranscribe)
				if err != nil {
					return nil, err
				}
				return o.fallback.CleanedTranscript(in.raw), nil
			},
			decode: decodeAs[model.CleanedTranscript],
			model:  func() string { return gen.Model(generate.StageClean) },
		},
		&pipelineStage{
			name:        StageOutline,
			deps:        []string{StageClean},
			status:      model.StatusChunking,
			estimateKey: StageOutline,
			message:     "Extracting outline",
			quiet:       true,
			metric:      cleanedChars,
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageClean)
				if err != nil {
					return nil, err
				}
				result := OutlineResult{Parts: o.splitter.Split(in.cleaned.Text)}
				if length := textutil.RuneLen(in.cleaned.Text); length <= o.cfg.Pipeline.LargeTextThreshold {
					attrs := append(logging.DecisionAttrs("outline", "skip", "text below large-text threshold"), logging.Int("chars", length))
					logging.WithContext(ctx, o.logger).Debug("outline skipped", logging.Args(attrs...)...)
					return result, nil
				}
				extracted, err := extractor.Extract(ctx, result.Parts)
				if err != nil {
					return nil, err
				}
				result.Outline = &extracted
				return result, nil
			},
			decode: decodeAs[OutlineResult],
			model:  func() string { return outlineModel },
		},
		&pipelineStage{
			name:        StageChunk,
			deps:        []string{StageParse, StageClean, StageOutline},
			status:      model.StatusChunking,
			estimateKey: StageChunk,
			message:     "Chunking transcript",
			metric:      cleanedChars,
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageOutline)
				if err != nil {
					return nil, err
				}
				return gen.Chunk(ctx, in.meta, in.outline.Parts, in.outline.Outline)
			},
			fallback: func(st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean)
				if err != nil {
					return nil, err
				}
				return o.fallback.Chunks(in.meta, in.cleaned), nil
			},
			decode: decodeAs[model.TranscriptChunks],
			model:  func() string { return gen.Model(generate.StageChunk) },
		},
		&pipelineStage{
			name:        StageLongread,
			deps:        []string{StageParse, StageClean, StageOutline},
			status:      model.StatusLongread,
			estimateKey: StageLongread,
			message:     "Writing longread",
			metric:      cleanedChars,
			skip:        isLeadership,
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean, StageOutline)
				if err != nil {
					return nil, err
				}
				return gen.Longread(ctx, in.meta, in.cleaned, in.outline.Outline)
			},
			fallback: func(st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean, StageOutline)
				if err != nil {
					return nil, err
				}
				return o.fallback.Longread(in.meta, in.cleaned, in.outline.Outline), nil
			},
			decode: decodeAs[model.Longread],
			model:  func() string { return gen.Model(generate.StageLongread) },
		},
		&pipelineStage{
			name:        StageSummarize,
			deps:        []string{StageParse, StageClean, StageOutline},
			status:      model.StatusSummarizing,
			estimateKey: StageSummarize,
			message:     "Writing summary",
			metric:      cleanedChars,
			skip:        isLeadership,
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean, StageOutline)
				if err != nil {
					return nil, err
				}
				return gen.Summarize(ctx, in.meta, in.cleaned, in.outline.Outline)
			},
			fallback: func(st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean)
				if err != nil {
					return nil, err
				}
				return o.fallback.Summary(in.meta, in.cleaned), nil
			},
			decode: decodeAs[model.Summary],
			model:  func() string { return gen.Model(generate.StageSummarize) },
		},
		&pipelineStage{
			name:        StageStory,
			deps:        []string{StageParse, StageClean},
			status:      model.StatusStory,
			estimateKey: StageStory,
			message:     "Writing story",
			metric:      cleanedChars,
			skip:        func(st *stage.State) bool { return !isLeadership(st) },
			run: func(ctx context.Context, st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean)
				if err != nil {
					return nil, err
				}
				return gen.Story(ctx, in.meta, in.cleaned)
			},
			fallback: func(st *stage.State) (any, error) {
				in, err := readInputs(st, StageParse, StageClean)
				if err != nil {
					return nil, err
				}
				return o.fallback.Story(in.meta, in.cleaned), nil
			},
			decode: decodeAs[model.Story],
			model:  func() string { return gen.Model(generate.StageStory) },
		},
		&pipelineStage{
			name:        StageSave,
			deps:        []string{StageTranscribe, StageChunk, StageLongread, StageSummarize, StageStory},
			status:      model.StatusSaving,
			estimateKey: StageSave,
			message:     "Saving to archive",
			metric:      func(context.Context, *stage.State) float64 { return 0 },
			run:         o.save,
		},
	)
	return registry
}

func (o *Orchestrator) save(ctx context.Context, st *stage.State) (any, error) {
	in, err := readInputs(st, StageParse, StageTranscribe, StageClean)
	if err != nil {
		return nil, err
	}
	chunks, err := stage.ResultAs[model.TranscriptChunks](st, StageChunk)
	if err != nil {
		return nil, err
	}
	bundle := archive.Bundle{
		Metadata:  in.meta.WithDuration(in.raw.DurationSeconds),
		Raw:       in.raw,
		Cleaned:   in.cleaned,
		Chunks:    chunks,
		AudioPath: in.audio,
	}
	if doc, err := stage.ResultAs[model.Longread](st, StageLongread); err == nil {
		bundle.Longread = &doc
	}
	if doc, err := stage.ResultAs[model.Summary](st, StageSummarize); err == nil {
		bundle.Summary = &doc
	}
	if doc, err := stage.ResultAs[model.Story](st, StageStory); err == nil {
		bundle.Story = &doc
	}
	return o.archive.Save(ctx, bundle)
}
