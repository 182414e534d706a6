package generate

import (
	"context"
	"fmt"
	"strings"

	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/services/llm"
)

const missingBlock = "No content available."

type storyReply struct {
	Blocks []string `json:"blocks"`
}

// Story retells a leadership talk in the fixed eight blocks. A reply with
// fewer than half of the blocks filled is rejected; a few missing blocks get
// a placeholder so the document keeps its shape.
func (g *Generator) Story(ctx context.Context, meta model.VideoMetadata, cleaned model.CleanedTranscript) (model.Story, error) {
	if strings.TrimSpace(cleaned.Text) == "" {
		return model.Story{}, errEmptyTranscript
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tell the story of the leadership talk %q", meta.Title)
	if meta.Speaker != "" {
		fmt.Fprintf(&b, " by %s", meta.Speaker)
	}
	fmt.Fprintf(&b, " in exactly %d blocks, in this order:\n", model.StoryBlockCount)
	for i, title := range model.StoryBlockTitles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	b.WriteString("Each block is 1-3 paragraphs in the speaker's own terms.\n")
	b.WriteString("Reply in the language of the transcript with JSON only: {\"blocks\": [\"block 1 text\", \"...\"]}\n\nTranscript:\n")
	b.WriteString(excerpt(cleaned.Text))

	reply, err := g.client.Generate(ctx, b.String(), g.opts.Models.Story)
	if err != nil {
		return model.Story{}, fmt.Errorf("story: %w", err)
	}
	var parsed storyReply
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		return model.Story{}, fmt.Errorf("story: %w", err)
	}

	story := model.Story{
		VideoID:        meta.VideoID,
		Title:          meta.Title,
		Speaker:        meta.Speaker,
		Blocks:         make([]model.StoryBlock, model.StoryBlockCount),
		Classification: meta.Classification(),
		ModelName:      g.opts.Models.Story,
	}
	filled := 0
	for i := range story.Blocks {
		content := ""
		if i < len(parsed.Blocks) {
			content = strings.TrimSpace(parsed.Blocks[i])
		}
		if content == "" {
			content = missingBlock
		} else {
			filled++
		}
		story.Blocks[i] = model.StoryBlock{Index: i + 1, Title: model.StoryBlockTitles[i], Content: content}
	}
	if filled*2 < model.StoryBlockCount {
		return model.Story{}, fmt.Errorf("story reply filled %d of %d blocks", filled, model.StoryBlockCount)
	}
	if filled < model.StoryBlockCount {
		logging.WarnWithContext(g.logger, "story has empty blocks", "story_blocks_missing",
			logging.Int("filled", filled),
			logging.String(logging.FieldImpact, "empty blocks carry a placeholder"),
			logging.String(logging.FieldErrorHint, "rerun the story stage with a stronger model"),
		)
	}
	return story, nil
}
