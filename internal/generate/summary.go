package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talkvault/internal/model"
	"talkvault/internal/services/llm"
)

type summaryReply struct {
	Essence     string   `json:"essence"`
	KeyConcepts []string `json:"key_concepts"`
	Quotes      []string `json:"quotes"`
	Actions     []string `json:"actions"`
}

// Summarize writes the condensed digest of an educational talk.
func (g *Generator) Summarize(ctx context.Context, meta model.VideoMetadata, cleaned model.CleanedTranscript, outline *model.TranscriptOutline) (model.Summary, error) {
	if strings.TrimSpace(cleaned.Text) == "" {
		return model.Summary{}, errEmptyTranscript
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the talk %q", meta.Title)
	if meta.Speaker != "" {
		fmt.Fprintf(&b, " by %s", meta.Speaker)
	}
	b.WriteString(".\nGive the essence in 3-5 sentences, up to 7 key concepts, up to 5 verbatim quotes and up to 5 practical actions.\n")
	if outline != nil {
		if contextText := outline.ContextText(); contextText != "" {
			b.WriteString("\nOutline of the talk:\n")
			b.WriteString(contextText)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nReply in the language of the transcript with JSON only: {\"essence\": \"...\", \"key_concepts\": [], \"quotes\": [], \"actions\": []}\n\nTranscript:\n")
	b.WriteString(excerpt(cleaned.Text))

	reply, err := g.client.Generate(ctx, b.String(), g.opts.Models.Summarize)
	if err != nil {
		return model.Summary{}, fmt.Errorf("summary: %w", err)
	}
	var parsed summaryReply
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		return model.Summary{}, fmt.Errorf("summary: %w", err)
	}
	essence := strings.TrimSpace(parsed.Essence)
	if essence == "" {
		return model.Summary{}, errors.New("summary reply has no essence")
	}
	return model.Summary{
		VideoID:        meta.VideoID,
		Title:          meta.Title,
		Essence:        essence,
		KeyConcepts:    cleanList(parsed.KeyConcepts),
		Quotes:         cleanList(parsed.Quotes),
		Actions:        cleanList(parsed.Actions),
		Classification: meta.Classification(),
		ModelName:      g.opts.Models.Summarize,
	}, nil
}
