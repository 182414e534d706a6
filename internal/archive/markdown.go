package archive

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"talkvault/internal/model"
)

// frontMatter heads every Markdown document.
type frontMatter struct {
	Title       string   `yaml:"title"`
	Speaker     string   `yaml:"speaker,omitempty"`
	Date        string   `yaml:"date,omitempty"`
	Event       string   `yaml:"event,omitempty"`
	Stream      string   `yaml:"stream,omitempty"`
	VideoID     string   `yaml:"video_id"`
	Document    string   `yaml:"document"`
	Tags        []string `yaml:"tags,flow"`
	AccessLevel string   `yaml:"access_level"`
	Model       string   `yaml:"model,omitempty"`
	Degraded    bool     `yaml:"degraded,omitempty"`
}

func newFrontMatter(meta model.VideoMetadata, document string, class model.Classification, modelName string, degraded bool) frontMatter {
	tags := class.Tags
	if tags == nil {
		tags = []string{}
	}
	return frontMatter{
		Title:       meta.Title,
		Speaker:     meta.Speaker,
		Date:        meta.DisplayDate(),
		Event:       meta.EventType,
		Stream:      meta.Stream,
		VideoID:     meta.VideoID,
		Document:    document,
		Tags:        tags,
		AccessLevel: class.AccessLevel,
		Model:       modelName,
		Degraded:    degraded,
	}
}

func writeFrontMatter(b *strings.Builder, fm frontMatter) {
	data, err := yaml.Marshal(fm)
	if err != nil {
		// Only plain strings, bools and string slices are marshalled.
		panic(fmt.Sprintf("marshal front matter: %v", err))
	}
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
}

// RenderCleaned renders the cleaned transcript.
func RenderCleaned(meta model.VideoMetadata, cleaned model.CleanedTranscript) string {
	var b strings.Builder
	writeFrontMatter(&b, newFrontMatter(meta, "transcript", meta.Classification(), cleaned.ModelName, cleaned.Degraded))
	fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	b.WriteString(strings.TrimSpace(cleaned.Text))
	b.WriteString("\n")
	return b.String()
}

// RenderLongread renders the longread article.
func RenderLongread(meta model.VideoMetadata, doc model.Longread) string {
	var b strings.Builder
	writeFrontMatter(&b, newFrontMatter(meta, "longread", doc.Classification, doc.ModelName, doc.Degraded))
	fmt.Fprintf(&b, "# %s\n\n", firstNonEmpty(doc.Title, meta.Title))
	if doc.Speaker != "" {
		fmt.Fprintf(&b, "*%s*\n\n", doc.Speaker)
	}
	writeParagraph(&b, doc.Introduction)
	for _, section := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Title)
		writeParagraph(&b, section.Content)
	}
	if strings.TrimSpace(doc.Conclusion) != "" {
		b.WriteString("## Conclusion\n\n")
		writeParagraph(&b, doc.Conclusion)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderSummary renders the digest.
func RenderSummary(meta model.VideoMetadata, doc model.Summary) string {
	var b strings.Builder
	writeFrontMatter(&b, newFrontMatter(meta, "summary", doc.Classification, doc.ModelName, doc.Degraded))
	fmt.Fprintf(&b, "# %s\n\n", firstNonEmpty(doc.Title, meta.Title))
	writeParagraph(&b, doc.Essence)
	writeList(&b, "Key concepts", doc.KeyConcepts, "- %s\n")
	writeList(&b, "Quotes", doc.Quotes, "> %s\n\n")
	writeList(&b, "Actions", doc.Actions, "- [ ] %s\n")
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderStory renders the eight-block story.
func RenderStory(meta model.VideoMetadata, doc model.Story) string {
	var b strings.Builder
	writeFrontMatter(&b, newFrontMatter(meta, "story", doc.Classification, doc.ModelName, doc.Degraded))
	fmt.Fprintf(&b, "# %s\n\n", firstNonEmpty(doc.Title, meta.Title))
	if doc.Speaker != "" {
		fmt.Fprintf(&b, "*%s*\n\n", doc.Speaker)
	}
	for _, block := range doc.Blocks {
		fmt.Fprintf(&b, "## %d. %s\n\n", block.Index, block.Title)
		writeParagraph(&b, block.Content)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeParagraph(b *strings.Builder, text string) {
	if text = strings.TrimSpace(text); text == "" {
		return
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}

func writeList(b *strings.Builder, heading string, items []string, format string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, format, item)
	}
	b.WriteString("\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
