package fallback

import (
	"fmt"
	"strings"

	"talkvault/internal/model"
	"talkvault/internal/textutil"
)

const (
	// ModelName is recorded on every degraded document.
	ModelName = "fallback"

	defaultChunkWords  = 300
	summaryLimit       = 500
	essenceSentences   = 3
	keyConceptLimit    = 5
	placeholderContent = "No content available."
)

// Factory builds degraded outputs. The zero value is ready to use.
type Factory struct {
	// ChunkWords is the target word count of one fallback chunk.
	ChunkWords int
}

func (f Factory) chunkWords() int {
	if f.ChunkWords > 0 {
		return f.ChunkWords
	}
	return defaultChunkWords
}

// CleanedTranscript joins the raw segments with whitespace collapsed.
func (f Factory) CleanedTranscript(raw model.RawTranscript) model.CleanedTranscript {
	original := raw.FullText()
	text := strings.Join(strings.Fields(original), " ")
	return model.CleanedTranscript{
		Text:           text,
		OriginalLength: textutil.RuneLen(original),
		CleanedLength:  textutil.RuneLen(text),
		ModelName:      ModelName,
		Degraded:       true,
	}
}

// Chunks packs whole sentences into windows of roughly ChunkWords words.
func (f Factory) Chunks(meta model.VideoMetadata, cleaned model.CleanedTranscript) model.TranscriptChunks {
	chunks := model.TranscriptChunks{
		VideoID:   meta.VideoID,
		Chunks:    []model.TranscriptChunk{},
		ModelName: ModelName,
		Degraded:  true,
	}
	for i, window := range f.windows(cleaned.Text) {
		chunks.Chunks = append(chunks.Chunks, model.TranscriptChunk{
			Topic: fmt.Sprintf("Part %d", i+1),
			Text:  window,
		})
	}
	chunks.Reindex()
	return chunks
}

// Summary uses the leading sentences as the essence and the chunk windows'
// first sentences as key concepts.
func (f Factory) Summary(meta model.VideoMetadata, cleaned model.CleanedTranscript) model.Summary {
	sentences := textutil.Sentences(cleaned.Text)
	essence := strings.Join(sentences[:min(essenceSentences, len(sentences))], " ")
	if essence == "" {
		essence = placeholderContent
	}
	concepts := []string{}
	for _, window := range f.windows(cleaned.Text) {
		if len(concepts) == keyConceptLimit {
			break
		}
		if first := textutil.FirstSentence(window, 120); first != "" {
			concepts = append(concepts, first)
		}
	}
	return model.Summary{
		VideoID:        meta.VideoID,
		Title:          meta.Title,
		Essence:        textutil.Truncate(essence, summaryLimit),
		KeyConcepts:    concepts,
		Quotes:         []string{},
		Actions:        []string{},
		Classification: meta.Classification(),
		ModelName:      ModelName,
		Degraded:       true,
	}
}

// Longread turns outline parts into sections when an outline exists and
// falls back to raw sentence windows otherwise.
func (f Factory) Longread(meta model.VideoMetadata, cleaned model.CleanedTranscript, outline *model.TranscriptOutline) model.Longread {
	doc := model.Longread{
		VideoID:        meta.VideoID,
		Title:          meta.Title,
		Speaker:        meta.Speaker,
		Introduction:   textutil.FirstSentence(cleaned.Text, summaryLimit),
		Classification: meta.Classification(),
		ModelName:      ModelName,
		Degraded:       true,
	}
	if outline != nil && len(outline.Parts) > 0 {
		for _, part := range outline.Parts {
			title := fmt.Sprintf("Part %d", part.PartIndex)
			if len(part.Topics) > 0 {
				title = part.Topics[0]
			}
			var body strings.Builder
			body.WriteString(strings.TrimSpace(part.Summary))
			for _, point := range part.KeyPoints {
				body.WriteString("\n- ")
				body.WriteString(point)
			}
			doc.Sections = append(doc.Sections, section(len(doc.Sections)+1, title, body.String()))
		}
	} else {
		for i, window := range f.windows(cleaned.Text) {
			doc.Sections = append(doc.Sections, section(i+1, fmt.Sprintf("Part %d", i+1), window))
		}
	}
	if len(doc.Sections) == 0 {
		doc.Sections = []model.LongreadSection{section(1, meta.Title, placeholderContent)}
	}
	if doc.Introduction == "" {
		doc.Introduction = placeholderContent
	}
	doc.Conclusion = placeholderContent
	return doc
}

// Story spreads the sentences evenly over the eight fixed blocks. Blocks that
// receive no text get a placeholder so the document keeps its shape.
func (f Factory) Story(meta model.VideoMetadata, cleaned model.CleanedTranscript) model.Story {
	sentences := textutil.Sentences(cleaned.Text)
	story := model.Story{
		VideoID:        meta.VideoID,
		Title:          meta.Title,
		Speaker:        meta.Speaker,
		Blocks:         make([]model.StoryBlock, model.StoryBlockCount),
		Classification: meta.Classification(),
		ModelName:      ModelName,
		Degraded:       true,
	}
	per := (len(sentences) + model.StoryBlockCount - 1) / model.StoryBlockCount
	for i := range story.Blocks {
		content := placeholderContent
		if per > 0 {
			start := min(i*per, len(sentences))
			end := min(start+per, len(sentences))
			if start < end {
				content = strings.Join(sentences[start:end], " ")
			}
		}
		story.Blocks[i] = model.StoryBlock{
			Index:   i + 1,
			Title:   model.StoryBlockTitles[i],
			Content: content,
		}
	}
	return story
}

// PartOutline summarises a part by its first sentence under a generic topic.
func (f Factory) PartOutline(part model.TextPart) model.PartOutline {
	return model.PartOutline{
		PartIndex: part.Index,
		Topics:    []string{fmt.Sprintf("Part %d", part.Index)},
		KeyPoints: []string{},
		Summary:   textutil.FirstSentence(part.Text, summaryLimit),
		Fallback:  true,
	}
}

// windows groups whole sentences until the word target is reached.
func (f Factory) windows(text string) []string {
	target := f.chunkWords()
	var out []string
	var current []string
	words := 0
	for _, sentence := range textutil.Sentences(text) {
		current = append(current, sentence)
		words += len(strings.Fields(sentence))
		if words >= target {
			out = append(out, strings.Join(current, " "))
			current, words = nil, 0
		}
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

func section(index int, title, content string) model.LongreadSection {
	return model.LongreadSection{
		Index:     index,
		Title:     title,
		Content:   content,
		WordCount: len(strings.Fields(content)),
	}
}
