package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/services/llm"
)

type longreadPlan struct {
	Title    string `json:"title"`
	Sections []struct {
		Title string `json:"title"`
		Focus string `json:"focus"`
	} `json:"sections"`
}

type framingReply struct {
	Introduction string `json:"introduction"`
	Conclusion   string `json:"conclusion"`
}

// Longread writes the long-form article in three steps: a section plan,
// the section bodies (fanned out under SectionConcurrency), then the
// introduction and conclusion written against the finished sections.
func (g *Generator) Longread(ctx context.Context, meta model.VideoMetadata, cleaned model.CleanedTranscript, outline *model.TranscriptOutline) (model.Longread, error) {
	if strings.TrimSpace(cleaned.Text) == "" {
		return model.Longread{}, errEmptyTranscript
	}
	modelName := g.opts.Models.Longread
	var contextText string
	if outline != nil {
		contextText = outline.ContextText()
	}

	reply, err := g.client.Generate(ctx, buildPlanPrompt(meta, cleaned.Text, contextText), modelName)
	if err != nil {
		return model.Longread{}, fmt.Errorf("longread plan: %w", err)
	}
	var plan longreadPlan
	if err := llm.DecodeJSON(reply, &plan); err != nil {
		return model.Longread{}, fmt.Errorf("longread plan: %w", err)
	}
	type planned struct{ title, focus string }
	var sections []planned
	for _, s := range plan.Sections {
		if title := strings.TrimSpace(s.Title); title != "" {
			sections = append(sections, planned{title: title, focus: strings.TrimSpace(s.Focus)})
		}
		if len(sections) == maxSections {
			break
		}
	}
	if len(sections) == 0 {
		return model.Longread{}, errors.New("longread plan has no sections")
	}

	bodies := make([]string, len(sections))
	sem := semaphore.NewWeighted(int64(g.opts.SectionConcurrency))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, s := range sections {
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			prompt := buildSectionPrompt(meta, i+1, len(sections), s.title, s.focus, cleaned.Text, contextText)
			body, err := g.client.Generate(groupCtx, prompt, modelName)
			if err != nil {
				return fmt.Errorf("longread section %d: %w", i+1, err)
			}
			body = strings.TrimSpace(llm.StripCodeFence(body))
			if body == "" {
				return fmt.Errorf("longread section %d: empty reply", i+1)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return model.Longread{}, err
	}

	doc := model.Longread{
		VideoID:        meta.VideoID,
		Title:          firstNonBlank(plan.Title, meta.Title),
		Speaker:        meta.Speaker,
		Classification: meta.Classification(),
		ModelName:      modelName,
	}
	for i, s := range sections {
		doc.Sections = append(doc.Sections, model.LongreadSection{
			Index:     i + 1,
			Title:     s.title,
			Content:   bodies[i],
			WordCount: len(strings.Fields(bodies[i])),
		})
	}

	reply, err = g.client.Generate(ctx, buildFramingPrompt(doc), modelName)
	if err != nil {
		return model.Longread{}, fmt.Errorf("longread framing: %w", err)
	}
	var framing framingReply
	if err := llm.DecodeJSON(reply, &framing); err != nil {
		return model.Longread{}, fmt.Errorf("longread framing: %w", err)
	}
	doc.Introduction = strings.TrimSpace(framing.Introduction)
	doc.Conclusion = strings.TrimSpace(framing.Conclusion)
	if doc.Introduction == "" || doc.Conclusion == "" {
		return model.Longread{}, errors.New("longread framing is missing the introduction or conclusion")
	}

	g.logger.Debug("longread generated",
		logging.Int("sections", len(doc.Sections)),
		logging.String("model", modelName),
	)
	return doc, nil
}

func buildPlanPrompt(meta model.VideoMetadata, text, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a longread article based on the talk %q", meta.Title)
	if meta.Speaker != "" {
		fmt.Fprintf(&b, " by %s", meta.Speaker)
	}
	fmt.Fprintf(&b, ".\nPropose 3-%d sections that follow the talk in order.\n", maxSections)
	if contextText != "" {
		b.WriteString("\nOutline of the talk:\n")
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("\nReply in the language of the transcript with JSON only: {\"title\": \"...\", \"sections\": [{\"title\": \"...\", \"focus\": \"one sentence\"}]}\n\nTranscript:\n")
	b.WriteString(excerpt(text))
	return b.String()
}

func buildSectionPrompt(meta model.VideoMetadata, index, total int, title, focus, text, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write section %d of %d of a longread based on the talk %q.\n", index, total, meta.Title)
	fmt.Fprintf(&b, "Section title: %s\n", title)
	if focus != "" {
		fmt.Fprintf(&b, "Section focus: %s\n", focus)
	}
	if contextText != "" {
		b.WriteString("Outline of the talk:\n")
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("Write 300-600 words of prose in the language of the transcript, using only what the speaker said. Reply with the section text only, without the title.\n\nTranscript:\n")
	b.WriteString(excerpt(text))
	return b.String()
}

func buildFramingPrompt(doc model.Longread) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the introduction and conclusion for the longread %q.\n", doc.Title)
	b.WriteString("The introduction sets up the topic in 2-4 sentences; the conclusion draws the main takeaway in 2-4 sentences.\n")
	b.WriteString("Reply in the language of the sections with JSON only: {\"introduction\": \"...\", \"conclusion\": \"...\"}\n\nSections:\n")
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.Title, s.Content)
	}
	return excerpt(b.String())
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
