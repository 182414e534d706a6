package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/services/llm"
	"talkvault/internal/textutil"
)

// overlapDuplicate is the similarity at which a chunk is treated as the
// repeat of the previous one. Parts overlap, so the tail of one part and the
// head of the next can come back as the same chunk.
const overlapDuplicate = 0.8

type chunkReply struct {
	Chunks []struct {
		Topic string `json:"topic"`
		Text  string `json:"text"`
	} `json:"chunks"`
}

// Chunk splits every part into semantic chunks, merges them in part order
// and renumbers the result. The outline, when present, is handed to each
// request so topics stay consistent across parts.
func (g *Generator) Chunk(ctx context.Context, meta model.VideoMetadata, parts []model.TextPart, outline *model.TranscriptOutline) (model.TranscriptChunks, error) {
	if len(parts) == 0 {
		return model.TranscriptChunks{}, errors.New("no text parts to chunk")
	}
	var contextText string
	if outline != nil {
		contextText = outline.ContextText()
	}

	result := model.TranscriptChunks{VideoID: meta.VideoID, ModelName: g.opts.Models.Chunk}
	dropped := 0
	for _, part := range parts {
		reply, err := g.client.Generate(ctx, buildChunkPrompt(part, len(parts), contextText), g.opts.Models.Chunk)
		if err != nil {
			return model.TranscriptChunks{}, fmt.Errorf("chunk part %d: %w", part.Index, err)
		}
		var parsed chunkReply
		if err := llm.DecodeJSON(reply, &parsed); err != nil {
			return model.TranscriptChunks{}, fmt.Errorf("chunk part %d: %w", part.Index, err)
		}
		for _, item := range parsed.Chunks {
			text := strings.TrimSpace(item.Text)
			if text == "" {
				continue
			}
			if n := len(result.Chunks); n > 0 && textutil.Jaccard(result.Chunks[n-1].Text, text) >= overlapDuplicate {
				dropped++
				continue
			}
			topic := strings.TrimSpace(item.Topic)
			if topic == "" {
				topic = fmt.Sprintf("Part %d", part.Index)
			}
			result.Chunks = append(result.Chunks, model.TranscriptChunk{Topic: topic, Text: text})
		}
	}
	result.Reindex()
	if len(result.Chunks) == 0 {
		return model.TranscriptChunks{}, errors.New("model returned no chunks")
	}
	g.logger.Debug("chunks merged",
		logging.Int("parts", len(parts)),
		logging.Int("chunks", len(result.Chunks)),
		logging.Int("overlap_duplicates", dropped),
	)
	return result, nil
}

func buildChunkPrompt(part model.TextPart, total int, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Split part %d of %d of a talk transcript into semantic chunks for retrieval.\n", part.Index, total)
	b.WriteString("Each chunk covers one idea in 100-400 words and keeps the transcript wording. Give each chunk a short topic.\n")
	if part.HasOverlapBefore {
		b.WriteString("The beginning of this part repeats the end of the previous part; skip text you would duplicate.\n")
	}
	if contextText != "" {
		b.WriteString("\nOutline of the whole talk:\n")
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("\nReply with JSON only: {\"chunks\": [{\"topic\": \"...\", \"text\": \"...\"}]}\n\nTranscript part:\n")
	b.WriteString(part.Text)
	return b.String()
}
