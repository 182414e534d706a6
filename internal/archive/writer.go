package archive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"talkvault/internal/fileutil"
	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/services"
)

// File names inside an archive directory.
const (
	MetadataFile = "metadata.json"
	RawFile      = "transcript_raw.json"
	CleanedFile  = "transcript_cleaned.md"
	ChunksFile   = "chunks.json"
	LongreadFile = "longread.md"
	StoryFile    = "story.md"
	SummaryFile  = "summary.md"
)

const (
	audioFileStem = "audio"
	fileMode      = 0o644
	stageName     = "save"
)

// Bundle is everything a run persists. Educational talks carry Longread and
// Summary; leadership talks carry Story.
type Bundle struct {
	Metadata  model.VideoMetadata
	Raw       model.RawTranscript
	Cleaned   model.CleanedTranscript
	Chunks    model.TranscriptChunks
	Longread  *model.Longread
	Summary   *model.Summary
	Story     *model.Story
	AudioPath string
}

// Writer saves bundles.
type Writer struct {
	logger *slog.Logger
}

// New constructs a Writer.
func New(logger *slog.Logger) *Writer {
	return &Writer{logger: logging.NewComponentLogger(logger, "archive")}
}

type output struct {
	name  string
	write func(path string) error
}

// Save writes the bundle into Metadata.ArchivePath and returns the created
// file names in write order.
func (w *Writer) Save(ctx context.Context, b Bundle) ([]string, error) {
	dir := strings.TrimSpace(b.Metadata.ArchivePath)
	if dir == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "archive path", "metadata has no archive path", nil)
	}
	outputs, err := plan(b)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "create archive dir", "cannot create "+dir, err)
	}

	files := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		if err := out.write(filepath.Join(dir, out.name)); err != nil {
			return files, services.StageFailure(services.ErrExternalTool, stageName, "write "+out.name, "archive write failed", err)
		}
		files = append(files, out.name)
	}
	logging.WithContext(ctx, w.logger).Info("archive saved",
		logging.String(logging.FieldEventType, "archive_saved"),
		logging.String("archive_path", dir),
		logging.Int("files", len(files)),
	)
	return files, nil
}

func plan(b Bundle) ([]output, error) {
	outputs := []output{
		{MetadataFile, jsonWriter(b.Metadata)},
		{RawFile, jsonWriter(b.Raw)},
		{CleanedFile, textWriter(RenderCleaned(b.Metadata, b.Cleaned))},
		{ChunksFile, jsonWriter(b.Chunks)},
	}
	if b.Metadata.IsLeadership() {
		if b.Story == nil {
			return nil, services.Wrap(services.ErrValidation, stageName, "bundle", "leadership talk without a story", nil)
		}
		outputs = append(outputs, output{StoryFile, textWriter(RenderStory(b.Metadata, *b.Story))})
	} else {
		if b.Longread == nil || b.Summary == nil {
			return nil, services.Wrap(services.ErrValidation, stageName, "bundle", "educational talk without longread or summary", nil)
		}
		outputs = append(outputs,
			output{LongreadFile, textWriter(RenderLongread(b.Metadata, *b.Longread))},
			output{SummaryFile, textWriter(RenderSummary(b.Metadata, *b.Summary))},
		)
	}
	if src := strings.TrimSpace(b.AudioPath); src != "" {
		name := audioFileStem + strings.ToLower(filepath.Ext(src))
		outputs = append(outputs, output{name, func(path string) error {
			return fileutil.CopyFileVerified(src, path)
		}})
	}
	return outputs, nil
}

func jsonWriter(v any) func(string) error {
	return func(path string) error { return fileutil.WriteJSONAtomic(path, v) }
}

func textWriter(content string) func(string) error {
	return func(path string) error {
		return fileutil.WriteFileAtomic(path, []byte(content), fileMode)
	}
}
