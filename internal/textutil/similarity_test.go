package textutil

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestWordsLowercasesAndSplitsOnPunctuation(t *testing.T) {
	got := Words("Продукт «Формула-1», Team!")
	want := []string{"продукт", "формула", "1", "team"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Words() = %v, want %v", got, want)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Продукт Формула", "продукт формула", 1},
		{"superset", "Продукт Формула", "Продукт Формула 1", 2.0 / 3.0},
		{"disjoint", "sales funnel", "team hiring", 0},
		{"both empty", "", "  ", 1},
		{"one empty", "", "word", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Jaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDedupeBySimilarityKeepsFirstOccurrence(t *testing.T) {
	got := DedupeBySimilarity([]string{"Продукт Формула", "", "Продукт Формула 1", "Команда", "команда"}, 0.6)
	want := []string{"Продукт Формула", "Команда"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupeBySimilarity() = %v, want %v", got, want)
	}
}

func TestSentenceSpansCoverInput(t *testing.T) {
	text := "First one. Second!  Third? tail without end"
	runes := []rune(text)
	spans := SentenceSpans(runes)
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d: %v", len(spans), spans)
	}
	var rebuilt strings.Builder
	prev := 0
	for _, span := range spans {
		if span.Start != prev {
			t.Fatalf("gap before span %v", span)
		}
		rebuilt.WriteString(string(runes[span.Start:span.End]))
		prev = span.End
	}
	if rebuilt.String() != text {
		t.Fatalf("spans do not rebuild input: %q", rebuilt.String())
	}
}

func TestSentenceSpansIgnoresInlineDots(t *testing.T) {
	got := Sentences("Version 2.5 shipped. Done")
	want := []string{"Version 2.5 shipped.", "Done"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sentences() = %v, want %v", got, want)
	}
}

func TestWordSpansRespectLimit(t *testing.T) {
	runes := []rune(strings.Repeat("word ", 50))
	spans := WordSpans(runes, Span{Start: 0, End: len(runes)}, 32)
	prev := 0
	for _, span := range spans {
		if span.Len() > 32 {
			t.Fatalf("span %v exceeds limit", span)
		}
		if span.Start != prev {
			t.Fatalf("gap before span %v", span)
		}
		prev = span.End
	}
	if prev != len(runes) {
		t.Fatalf("spans end at %d, want %d", prev, len(runes))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("короткий", 20); got != "короткий" {
		t.Fatalf("unexpected truncate: %q", got)
	}
	got := Truncate("очень длинная строка", 6)
	if RuneLen(got) > 6 || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected truncate: %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"  Title: Part/2?  ":  "Title- Part-2",
		"..hidden":           "hidden",
		"a   b\tc":           "a b c",
		"":                   "",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
