package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// minDetectRunes is the shortest text handed to statistical detection.
const minDetectRunes = 40

// ToISO2 normalizes a language code or BCP 47 tag ("ru", "rus", "ru-RU") to
// ISO 639-1. Codes without a two-letter form are returned as their base code;
// unparseable input yields "".
func ToISO2(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// Detect guesses the language of text. It returns "" when the text is too
// short or detection is unreliable.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minDetectRunes {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// Resolve picks the transcript language: the code reported by the
// transcriber, then the configured one, then detection over text.
func Resolve(reported, configured, text string) string {
	if code := ToISO2(reported); code != "" {
		return code
	}
	if code := ToISO2(configured); code != "" {
		return code
	}
	return Detect(text)
}
