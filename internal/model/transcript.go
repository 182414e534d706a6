package model

import "strings"

// TranscriptSegment is one timestamped utterance.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// RawTranscript is the transcription output.
type RawTranscript struct {
	Segments        []TranscriptSegment `json:"segments"`
	Language        string              `json:"language"`
	Model           string              `json:"model"`
	DurationSeconds float64             `json:"duration_seconds"`
}

// FullText joins segment text with single spaces.
func (t RawTranscript) FullText() string {
	var b strings.Builder
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}

// CleanedTranscript is the cleaned text consumed by every downstream stage.
type CleanedTranscript struct {
	Text           string `json:"text"`
	OriginalLength int    `json:"original_length"`
	CleanedLength  int    `json:"cleaned_length"`
	ModelName      string `json:"model_name"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// TextPart is one slice of a larger text. Offsets are rune offsets into the
// source text; Index is 1-based.
type TextPart struct {
	Index            int    `json:"index"`
	Text             string `json:"text"`
	StartChar        int    `json:"start_char"`
	EndChar          int    `json:"end_char"`
	HasOverlapBefore bool   `json:"has_overlap_before"`
	HasOverlapAfter  bool   `json:"has_overlap_after"`
}

// Len returns the part length in runes.
func (p TextPart) Len() int { return p.EndChar - p.StartChar }
