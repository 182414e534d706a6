package textsplit

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkvault/internal/model"
)

func sentenceText(count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "Предложение номер %03d про продукт. ", i)
	}
	return strings.TrimSpace(b.String())
}

func smallSplitter() *Splitter {
	return New(Options{PartSize: 400, OverlapSize: 100, MinPartSize: 150})
}

func requireCoverage(t *testing.T, text string, parts []model.TextPart) {
	t.Helper()
	runes := []rune(text)
	covered := make([]bool, len(runes))
	for _, part := range parts {
		require.Equal(t, string(runes[part.StartChar:part.EndChar]), part.Text, "part %d text must match its offsets", part.Index)
		for i := part.StartChar; i < part.EndChar; i++ {
			covered[i] = true
		}
	}
	for i, r := range runes {
		if !covered[i] && !unicode.IsSpace(r) {
			t.Fatalf("rune %d (%q) not covered by any part", i, r)
		}
	}
}

func TestSplitShortTextReturnsSinglePart(t *testing.T) {
	s := New(Options{})
	text := sentenceText(10)

	parts := s.Split(text)

	require.Len(t, parts, 1)
	assert.Equal(t, 1, parts[0].Index)
	assert.Equal(t, text, parts[0].Text)
	assert.False(t, parts[0].HasOverlapBefore)
	assert.False(t, parts[0].HasOverlapAfter)
}

func TestSplitExactlyPartSizeIsSinglePart(t *testing.T) {
	s := New(Options{PartSize: 50, OverlapSize: 10, MinPartSize: 10})
	text := strings.Repeat("я", 50)

	parts := s.Split(text)

	require.Len(t, parts, 1)
	assert.Equal(t, 50, parts[0].EndChar)
}

func TestSplitLongTextCoversInputWithOverlap(t *testing.T) {
	s := smallSplitter()
	text := sentenceText(60)

	parts := s.Split(text)

	require.Greater(t, len(parts), 3)
	requireCoverage(t, text, parts)
	for i, part := range parts {
		assert.Equal(t, i+1, part.Index)
		if i < len(parts)-1 {
			assert.LessOrEqual(t, part.Len(), 400, "part %d too large", part.Index)
			assert.Equal(t, part.HasOverlapAfter, parts[i+1].HasOverlapBefore)
		}
		if part.HasOverlapBefore {
			prev := parts[i-1]
			assert.Less(t, part.StartChar, prev.EndChar, "part %d declares overlap but does not overlap", part.Index)
			assert.LessOrEqual(t, prev.EndChar-part.StartChar, 100)
		}
	}
	assert.False(t, parts[0].HasOverlapBefore)
	assert.False(t, parts[len(parts)-1].HasOverlapAfter)
}

func TestSplitIsDeterministic(t *testing.T) {
	s := smallSplitter()
	text := sentenceText(45)

	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestSplitMergesUndersizedTail(t *testing.T) {
	s := smallSplitter()
	for count := 12; count < 40; count++ {
		text := sentenceText(count)
		parts := s.Split(text)
		requireCoverage(t, text, parts)
		if len(parts) > 1 {
			last := parts[len(parts)-1]
			newContent := last.EndChar - parts[len(parts)-2].EndChar
			assert.GreaterOrEqual(t, last.Len(), 150, "count=%d: last part below minimum (new content %d)", count, newContent)
		}
	}
}

func TestSplitFallsBackToCommasForUnpunctuatedText(t *testing.T) {
	s := smallSplitter()
	var b strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "фрагмент речи %d без точки, ", i)
	}
	text := strings.TrimSpace(b.String())

	parts := s.Split(text)

	require.Greater(t, len(parts), 1)
	requireCoverage(t, text, parts)
	for _, part := range parts[:len(parts)-1] {
		assert.LessOrEqual(t, part.Len(), 400)
	}
}

func TestSplitHardCutsTextWithoutSeparators(t *testing.T) {
	s := smallSplitter()
	text := strings.TrimSpace(strings.Repeat("слово ", 300))

	parts := s.Split(text)

	require.Greater(t, len(parts), 1)
	requireCoverage(t, text, parts)
}

func TestNewClampsOverlap(t *testing.T) {
	s := New(Options{PartSize: 100, OverlapSize: 500})
	assert.Equal(t, 50, s.overlapSize)
	assert.Equal(t, 100, s.PartSize())
}
