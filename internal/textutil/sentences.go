package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open rune range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the span length in runes.
func (s Span) Len() int { return s.End - s.Start }

// SentenceSpans partitions runes into contiguous sentence spans. A sentence
// ends after '.', '!' or '?' followed by whitespace; the whitespace run
// belongs to the sentence it follows, so the spans cover the input without
// gaps.
func SentenceSpans(runes []rune) []Span {
	return splitSpans(runes, func(i int) bool {
		switch runes[i] {
		case '.', '!', '?':
			return i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		}
		return false
	})
}

// CommaSpans partitions runes after each comma that is followed by
// whitespace. It is used for over-long sentences in unpunctuated transcripts.
func CommaSpans(runes []rune) []Span {
	return splitSpans(runes, func(i int) bool {
		return runes[i] == ',' && i+1 < len(runes) && unicode.IsSpace(runes[i+1])
	})
}

// WordSpans partitions runes into pieces of at most limit runes, cutting at
// the last whitespace inside the window when there is one.
func WordSpans(runes []rune, base Span, limit int) []Span {
	if limit <= 0 || base.Len() <= limit {
		return []Span{base}
	}
	var spans []Span
	start := base.Start
	for base.End-start > limit {
		cut := start + limit
		for i := cut; i > start+limit/2; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		spans = append(spans, Span{Start: start, End: cut})
		start = cut
	}
	if start < base.End {
		spans = append(spans, Span{Start: start, End: base.End})
	}
	return spans
}

func splitSpans(runes []rune, isBoundary func(i int) bool) []Span {
	var spans []Span
	start := 0
	i := 0
	for i < len(runes) {
		if isBoundary(i) {
			end := i + 1
			for end < len(runes) && unicode.IsSpace(runes[end]) {
				end++
			}
			spans = append(spans, Span{Start: start, End: end})
			start = end
			i = end
			continue
		}
		i++
	}
	if start < len(runes) {
		spans = append(spans, Span{Start: start, End: len(runes)})
	}
	return spans
}

// Sentences returns the trimmed, non-empty sentences of text.
func Sentences(text string) []string {
	runes := []rune(text)
	spans := SentenceSpans(runes)
	out := make([]string, 0, len(spans))
	for _, span := range spans {
		if s := strings.TrimSpace(string(runes[span.Start:span.End])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FirstSentence returns the first sentence of text, truncated to limit runes.
func FirstSentence(text string, limit int) string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	return Truncate(sentences[0], limit)
}

// Truncate cuts s to at most limit runes, appending an ellipsis when cut.
// A non-positive limit returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit == 1 {
		return string(runes[:1])
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
