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

// minCleanRatio rejects replies that shrink a window below this share of
// its input; such replies are summaries, not cleanups.
const minCleanRatio = 0.3

var errEmptyTranscript = errors.New("transcript is empty")

const cleanSystemPrompt = `You clean speech-to-text transcripts of talks.
Fix punctuation, casing and obvious recognition errors. Remove filler words and false starts.
Keep the speaker's wording, order and language. Do not summarise, shorten or add content.
Reply with the cleaned text only.`

// Clean removes recognition noise from the raw transcript. Long transcripts
// are cleaned window by window, each window a run of whole sentences.
func (g *Generator) Clean(ctx context.Context, raw model.RawTranscript) (model.CleanedTranscript, error) {
	original := raw.FullText()
	if strings.TrimSpace(original) == "" {
		return model.CleanedTranscript{}, errEmptyTranscript
	}
	windows := sentenceWindows(original, g.opts.CleanWindow)
	cleaned := make([]string, 0, len(windows))
	for i, window := range windows {
		messages := []llm.Message{
			{Role: llm.RoleSystem, Content: cleanSystemPrompt},
			{Role: llm.RoleUser, Content: window},
		}
		reply, err := g.client.Chat(ctx, messages, g.opts.Models.Clean)
		if err != nil {
			return model.CleanedTranscript{}, fmt.Errorf("clean window %d of %d: %w", i+1, len(windows), err)
		}
		text := strings.TrimSpace(llm.StripCodeFence(reply))
		if text == "" {
			return model.CleanedTranscript{}, fmt.Errorf("clean window %d of %d: empty reply", i+1, len(windows))
		}
		if ratio := float64(textutil.RuneLen(text)) / float64(textutil.RuneLen(window)); ratio < minCleanRatio {
			return model.CleanedTranscript{}, fmt.Errorf("clean window %d of %d: reply kept %.0f%% of the input", i+1, len(windows), ratio*100)
		}
		cleaned = append(cleaned, text)
	}

	text := strings.Join(cleaned, "\n\n")
	result := model.CleanedTranscript{
		Text:           text,
		OriginalLength: textutil.RuneLen(original),
		CleanedLength:  textutil.RuneLen(text),
		ModelName:      g.opts.Models.Clean,
	}
	g.logger.Debug("transcript cleaned",
		logging.Int("windows", len(windows)),
		logging.Int("original_length", result.OriginalLength),
		logging.Int("cleaned_length", result.CleanedLength),
	)
	return result, nil
}

// sentenceWindows groups whole sentences into windows of at most limit
// runes. A sentence longer than limit forms its own window.
func sentenceWindows(text string, limit int) []string {
	var windows []string
	var current strings.Builder
	size := 0
	for _, sentence := range textutil.Sentences(text) {
		n := textutil.RuneLen(sentence)
		if size > 0 && size+1+n > limit {
			windows = append(windows, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(sentence)
		size += n
	}
	if size > 0 {
		windows = append(windows, current.String())
	}
	return windows
}
