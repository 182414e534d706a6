package textsplit

import (
	"unicode"

	"talkvault/internal/model"
	"talkvault/internal/textutil"
)

// Default sizes, in runes.
const (
	DefaultPartSize    = 6000
	DefaultOverlapSize = 1500
	DefaultMinPartSize = 2000
)

// Options configures a Splitter. Zero values fall back to the defaults.
type Options struct {
	PartSize    int
	OverlapSize int
	MinPartSize int
}

// Splitter splits text into model.TextPart values.
type Splitter struct {
	partSize    int
	overlapSize int
	minPartSize int
}

// New constructs a Splitter. An overlap at or above the part size is clamped
// to half the part size so every part carries new content.
func New(opts Options) *Splitter {
	s := &Splitter{
		partSize:    opts.PartSize,
		overlapSize: opts.OverlapSize,
		minPartSize: opts.MinPartSize,
	}
	if s.partSize <= 0 {
		s.partSize = DefaultPartSize
	}
	if s.overlapSize < 0 {
		s.overlapSize = 0
	}
	if s.overlapSize >= s.partSize {
		s.overlapSize = s.partSize / 2
	}
	if s.minPartSize < 0 {
		s.minPartSize = 0
	}
	return s
}

// PartSize returns the configured part size.
func (s *Splitter) PartSize() int { return s.partSize }

// draft is a part under construction: a run of units whose first overlap
// entries were copied from the previous part.
type draft struct {
	units   []textutil.Span
	overlap int
}

func (d draft) length() int {
	total := 0
	for _, u := range d.units {
		total += u.Len()
	}
	return total
}

func (d draft) hasNewContent() bool { return len(d.units) > d.overlap }

// Split returns the ordered parts of text. Text no longer than the part size
// yields exactly one part without overlap flags.
func (s *Splitter) Split(text string) []model.TextPart {
	runes := []rune(text)
	if len(runes) <= s.partSize {
		return []model.TextPart{{
			Index:     1,
			Text:      text,
			StartChar: 0,
			EndChar:   len(runes),
		}}
	}

	units := s.units(runes)
	drafts := s.accumulate(units)
	drafts = s.mergeTail(drafts)
	return s.render(runes, drafts)
}

// units splits runes into sentences, breaking any sentence longer than the
// part size at commas and, failing that, at word boundaries.
func (s *Splitter) units(runes []rune) []textutil.Span {
	sentences := textutil.SentenceSpans(runes)
	units := make([]textutil.Span, 0, len(sentences))
	for _, sentence := range sentences {
		if sentence.Len() <= s.partSize {
			units = append(units, sentence)
			continue
		}
		for _, clause := range textutil.CommaSpans(runes[sentence.Start:sentence.End]) {
			clause = textutil.Span{Start: clause.Start + sentence.Start, End: clause.End + sentence.Start}
			units = append(units, textutil.WordSpans(runes, clause, s.partSize)...)
		}
	}
	return units
}

func (s *Splitter) accumulate(units []textutil.Span) []draft {
	var drafts []draft
	var current draft
	currentLen := 0
	for _, unit := range units {
		if currentLen+unit.Len() > s.partSize && current.hasNewContent() {
			drafts = append(drafts, current)
			seed := s.overlapSeed(current.units, unit.Len())
			current = draft{units: seed, overlap: len(seed)}
			currentLen = draft{units: seed}.length()
		}
		current.units = append(current.units, unit)
		currentLen += unit.Len()
	}
	if current.hasNewContent() {
		drafts = append(drafts, current)
	}
	return drafts
}

// overlapSeed walks backward over the units just closed, collecting whole
// sentences while they fit in the overlap budget. At least one unit of the
// closed part is never reused, and the seed is shortened from the front
// until the incoming unit fits beside it.
func (s *Splitter) overlapSeed(closed []textutil.Span, incoming int) []textutil.Span {
	if s.overlapSize == 0 || len(closed) < 2 {
		return nil
	}
	start := len(closed)
	total := 0
	for j := len(closed) - 1; j >= 1; j-- {
		if total+closed[j].Len() > s.overlapSize {
			break
		}
		total += closed[j].Len()
		start = j
	}
	for start < len(closed) && total+incoming > s.partSize {
		total -= closed[start].Len()
		start++
	}
	if start == len(closed) {
		return nil
	}
	seed := make([]textutil.Span, len(closed)-start)
	copy(seed, closed[start:])
	return seed
}

// mergeTail folds an undersized final part into its predecessor, dropping
// the sentences the two already share.
func (s *Splitter) mergeTail(drafts []draft) []draft {
	if len(drafts) < 2 {
		return drafts
	}
	last := drafts[len(drafts)-1]
	if last.length() >= s.minPartSize {
		return drafts
	}
	prev := drafts[len(drafts)-2]
	merged := draft{
		units:   append(append([]textutil.Span(nil), prev.units...), last.units[last.overlap:]...),
		overlap: prev.overlap,
	}
	return append(drafts[:len(drafts)-2], merged)
}

func (s *Splitter) render(runes []rune, drafts []draft) []model.TextPart {
	parts := make([]model.TextPart, 0, len(drafts))
	for _, d := range drafts {
		start := d.units[0].Start
		end := d.units[len(d.units)-1].End
		for start < end && unicode.IsSpace(runes[start]) {
			start++
		}
		for end > start && unicode.IsSpace(runes[end-1]) {
			end--
		}
		if start == end {
			continue
		}
		parts = append(parts, model.TextPart{
			Index:            len(parts) + 1,
			Text:             string(runes[start:end]),
			StartChar:        start,
			EndChar:          end,
			HasOverlapBefore: len(parts) > 0 && d.overlap > 0,
		})
	}
	for i := 0; i+1 < len(parts); i++ {
		parts[i].HasOverlapAfter = parts[i+1].HasOverlapBefore
	}
	if n := len(parts); n > 0 {
		parts[n-1].HasOverlapAfter = false
	}
	return parts
}
