package outline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"talkvault/internal/fallback"
	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/services/llm"
	"talkvault/internal/textutil"
)

const (
	defaultConcurrency = 2

	// DuplicateThreshold is the Jaccard similarity at which two topics are
	// considered the same.
	DuplicateThreshold = 0.6

	maxTopics    = 4
	maxKeyPoints = 5
	maxSummary   = 500
)

// Options configures an Extractor.
type Options struct {
	Model       string
	Concurrency int
}

// Extractor runs the outline Map-Reduce.
type Extractor struct {
	client   llm.Client
	opts     Options
	logger   *slog.Logger
	fallback fallback.Factory
}

// New constructs an Extractor.
func New(client llm.Client, opts Options, logger *slog.Logger) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		client: client,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "outline"),
	}
}

// Extract builds the outline of parts. Part failures degrade to fallback
// outlines; the only error is context cancellation.
func (e *Extractor) Extract(ctx context.Context, parts []model.TextPart) (model.TranscriptOutline, error) {
	outlines := make([]model.PartOutline, len(parts))
	sem := semaphore.NewWeighted(int64(e.opts.Concurrency))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, part := range parts {
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			outlines[i] = e.extractPart(groupCtx, part, len(parts))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return model.TranscriptOutline{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.TranscriptOutline{}, err
	}

	outline := Reduce(outlines)
	fallbacks := 0
	for _, part := range outline.Parts {
		if part.Fallback {
			fallbacks++
		}
	}
	e.logger.Info("outline extracted",
		logging.String(logging.FieldEventType, "outline_extracted"),
		logging.Int("parts", len(outline.Parts)),
		logging.Int("topics", len(outline.AllTopics)),
		logging.Int("fallback_parts", fallbacks),
	)
	return outline, nil
}

// Reduce merges per-part outlines in order and deduplicates their topics.
func Reduce(parts []model.PartOutline) model.TranscriptOutline {
	var topics []string
	for _, part := range parts {
		topics = append(topics, part.Topics...)
	}
	return model.TranscriptOutline{
		Parts:     parts,
		AllTopics: DedupeTopics(topics, DuplicateThreshold),
	}
}

// DedupeTopics keeps the first of every group of topics whose word sets have
// Jaccard similarity at or above threshold.
func DedupeTopics(topics []string, threshold float64) []string {
	return textutil.DedupeBySimilarity(topics, threshold)
}

type partReply struct {
	Topics    []string `json:"topics"`
	KeyPoints []string `json:"key_points"`
	Summary   string   `json:"summary"`
}

func (e *Extractor) extractPart(ctx context.Context, part model.TextPart, total int) model.PartOutline {
	reply, err := e.client.Generate(ctx, buildPrompt(part, total), e.opts.Model)
	if err == nil {
		var parsed partReply
		if err = llm.DecodeJSON(reply, &parsed); err == nil {
			return normalize(part, parsed)
		}
		err = fmt.Errorf("decode outline reply: %w", err)
	}
	if ctx.Err() == nil {
		logging.WarnWithContext(e.logger, "outline part fell back", "outline_part_fallback",
			logging.Int("part_index", part.Index),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the outline model output format"),
			logging.String(logging.FieldImpact, "part summarised by its first sentence"),
		)
	}
	return e.fallback.PartOutline(part)
}

func normalize(part model.TextPart, reply partReply) model.PartOutline {
	outline := model.PartOutline{
		PartIndex: part.Index,
		Topics:    cleanList(reply.Topics, maxTopics),
		KeyPoints: cleanList(reply.KeyPoints, maxKeyPoints),
		Summary:   textutil.Truncate(strings.TrimSpace(reply.Summary), maxSummary),
	}
	if len(outline.Topics) == 0 {
		outline.Topics = []string{fmt.Sprintf("Part %d", part.Index)}
	}
	if outline.Summary == "" {
		outline.Summary = textutil.FirstSentence(part.Text, maxSummary)
	}
	return outline
}

func cleanList(items []string, limit int) []string {
	out := make([]string, 0, min(len(items), limit))
	for _, item := range items {
		if len(out) == limit {
			break
		}
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func buildPrompt(part model.TextPart, total int) string {
	var overlap string
	switch {
	case part.HasOverlapBefore && part.HasOverlapAfter:
		overlap = "The beginning repeats the end of the previous part and the end repeats in the next part."
	case part.HasOverlapBefore:
		overlap = "The beginning repeats the end of the previous part."
	case part.HasOverlapAfter:
		overlap = "The end repeats in the next part."
	default:
		overlap = "This part has no overlap with its neighbours."
	}
	return fmt.Sprintf(`You are analysing part %d of %d of a talk transcript. %s
Reply in the language of the transcript with JSON only:
{"topics": ["1-4 short topic names"], "key_points": ["3-5 key points"], "summary": "2-3 sentences, at most 500 characters"}

Transcript part:
%s`, part.Index, total, overlap, part.Text)
}
