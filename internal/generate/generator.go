package generate

import (
	"log/slog"
	"strings"

	"talkvault/internal/config"
	"talkvault/internal/logging"
	"talkvault/internal/services/llm"
	"talkvault/internal/textutil"
)

// Stage names understood by WithModel.
const (
	StageClean     = "clean"
	StageChunk     = "chunk"
	StageLongread  = "longread"
	StageSummarize = "summarize"
	StageStory     = "story"
)

const (
	defaultSectionConcurrency = 2
	defaultCleanWindow        = 6000
	// maxPromptRunes bounds the transcript excerpt handed to single-shot
	// prompts (summary, story, longread plan).
	maxPromptRunes = 60000
	maxSections    = 8
)

// Options configures a Generator.
type Options struct {
	Models config.Models
	// SectionConcurrency bounds parallel longread section calls.
	SectionConcurrency int
	// CleanWindow is the rune budget of one cleaning request.
	CleanWindow int
}

// Generator produces documents through an LLM client.
type Generator struct {
	client llm.Client
	opts   Options
	logger *slog.Logger
}

// New constructs a Generator.
func New(client llm.Client, opts Options, logger *slog.Logger) *Generator {
	if opts.SectionConcurrency <= 0 {
		opts.SectionConcurrency = defaultSectionConcurrency
	}
	if opts.CleanWindow <= 0 {
		opts.CleanWindow = defaultCleanWindow
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		client: client,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "generate"),
	}
}

// OptionsFromConfig maps the configuration onto generator options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Models:             cfg.Models,
		SectionConcurrency: cfg.Pipeline.SectionConcurrency,
		CleanWindow:        cfg.Pipeline.PartSize,
	}
}

// WithModel returns a copy that uses model for stage. An empty model or an
// unknown stage returns the receiver unchanged.
func (g *Generator) WithModel(stage, model string) *Generator {
	model = strings.TrimSpace(model)
	if model == "" {
		return g
	}
	clone := *g
	switch stage {
	case StageClean:
		clone.opts.Models.Clean = model
	case StageChunk:
		clone.opts.Models.Chunk = model
	case StageLongread:
		clone.opts.Models.Longread = model
	case StageSummarize:
		clone.opts.Models.Summarize = model
	case StageStory:
		clone.opts.Models.Story = model
	default:
		return g
	}
	return &clone
}

// Model returns the model name configured for stage.
func (g *Generator) Model(stage string) string {
	switch stage {
	case StageClean:
		return g.opts.Models.Clean
	case StageChunk:
		return g.opts.Models.Chunk
	case StageLongread:
		return g.opts.Models.Longread
	case StageSummarize:
		return g.opts.Models.Summarize
	case StageStory:
		return g.opts.Models.Story
	}
	return ""
}

func excerpt(text string) string {
	return textutil.Truncate(strings.TrimSpace(text), maxPromptRunes)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
