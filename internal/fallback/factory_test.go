package fallback

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkvault/internal/model"
)

func sentences(n int, wordsEach int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		for w := 0; w < wordsEach; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("word")
		}
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}

func TestChunksAreDeterministicAndValid(t *testing.T) {
	meta := model.VideoMetadata{VideoID: "2025-01-10-pbm-talk"}
	cleaned := model.CleanedTranscript{Text: sentences(100, 10)}
	factory := Factory{}

	first := factory.Chunks(meta, cleaned)
	second := factory.Chunks(meta, cleaned)
	require.Equal(t, first, second)

	require.True(t, first.Degraded)
	require.Len(t, first.Chunks, 4)
	for i, chunk := range first.Chunks {
		assert.Equal(t, i+1, chunk.Index)
		assert.Equal(t, model.ChunkID(meta.VideoID, i+1), chunk.ID)
		assert.Equal(t, len(strings.Fields(chunk.Text)), chunk.WordCount)
	}
	assert.Equal(t, 1000, first.TotalWords())
}

func TestChunksOfEmptyText(t *testing.T) {
	chunks := Factory{}.Chunks(model.VideoMetadata{VideoID: "v"}, model.CleanedTranscript{})
	assert.NotNil(t, chunks.Chunks)
	assert.Empty(t, chunks.Chunks)
	assert.True(t, chunks.Degraded)

	data, err := json.Marshal(chunks)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chunks":[]`)
}

func TestCleanedTranscriptCollapsesWhitespace(t *testing.T) {
	raw := model.RawTranscript{Segments: []model.TranscriptSegment{{Text: "Hello   there."}, {Text: " General\nKenobi. "}}}
	cleaned := Factory{}.CleanedTranscript(raw)
	assert.Equal(t, "Hello there. General Kenobi.", cleaned.Text)
	assert.True(t, cleaned.Degraded)
	assert.Equal(t, len([]rune(cleaned.Text)), cleaned.CleanedLength)
}

func TestSummaryUsesLeadingSentences(t *testing.T) {
	meta := model.VideoMetadata{VideoID: "v", Title: "Talk", EventType: "ПШ"}
	cleaned := model.CleanedTranscript{Text: "One. Two. Three. Four."}
	summary := Factory{}.Summary(meta, cleaned)
	assert.Equal(t, "One. Two. Three.", summary.Essence)
	assert.Equal(t, []string{"ПШ"}, summary.Classification.Tags)
	assert.Equal(t, model.AccessInternal, summary.Classification.AccessLevel)
	assert.NotNil(t, summary.Quotes)
	assert.True(t, summary.Degraded)
}

func TestLongreadPrefersOutline(t *testing.T) {
	outline := &model.TranscriptOutline{Parts: []model.PartOutline{
		{PartIndex: 1, Topics: []string{"Pricing"}, KeyPoints: []string{"a"}, Summary: "About pricing."},
		{PartIndex: 2, Summary: "About hiring."},
	}}
	doc := Factory{}.Longread(model.VideoMetadata{Title: "Talk"}, model.CleanedTranscript{Text: "Intro sentence. More."}, outline)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Pricing", doc.Sections[0].Title)
	assert.Equal(t, "Part 2", doc.Sections[1].Title)
	assert.Contains(t, doc.Sections[0].Content, "- a")
	assert.Equal(t, "Intro sentence.", doc.Introduction)
	assert.True(t, doc.Degraded)
}

func TestLongreadWithoutTextKeepsShape(t *testing.T) {
	doc := Factory{}.Longread(model.VideoMetadata{Title: "Talk"}, model.CleanedTranscript{}, nil)
	require.Len(t, doc.Sections, 1)
	assert.NotEmpty(t, doc.Introduction)
	assert.NotEmpty(t, doc.Conclusion)
}

func TestStoryAlwaysHasEightBlocks(t *testing.T) {
	meta := model.VideoMetadata{ContentType: model.ContentLeadership}
	for _, text := range []string{"", "Only one.", sentences(30, 3)} {
		story := Factory{}.Story(meta, model.CleanedTranscript{Text: text})
		require.Len(t, story.Blocks, model.StoryBlockCount)
		for i, block := range story.Blocks {
			assert.Equal(t, i+1, block.Index)
			assert.Equal(t, model.StoryBlockTitles[i], block.Title)
			assert.NotEmpty(t, block.Content)
		}
		assert.Equal(t, model.AccessLeaders, story.Classification.AccessLevel)
	}
}

func TestPartOutline(t *testing.T) {
	outline := Factory{}.PartOutline(model.TextPart{Index: 3, Text: "First idea here. Second idea."})
	assert.Equal(t, 3, outline.PartIndex)
	assert.Equal(t, []string{"Part 3"}, outline.Topics)
	assert.Equal(t, "First idea here.", outline.Summary)
	assert.True(t, outline.Fallback)
}
