package filename

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"talkvault/internal/model"
)

func TestParseFullName(t *testing.T) {
	p := New("/archive", []string{"ЛК"})
	meta, err := p.Parse("/inbox/2025.04.07 ПШ.SV Группа SV (Кирилл Спасибо).mp4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !meta.Date.Equal(time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", meta.Date)
	}
	if meta.EventType != "ПШ" || meta.Stream != "SV" {
		t.Fatalf("unexpected event %q stream %q", meta.EventType, meta.Stream)
	}
	if meta.Title != "Группа SV" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Speaker != "Кирилл Спасибо" {
		t.Fatalf("unexpected speaker %q", meta.Speaker)
	}
	if meta.ContentType != model.ContentEducational {
		t.Fatalf("unexpected content type %q", meta.ContentType)
	}
	want := filepath.Join("/archive", "2025", "ПШ.SV", "2025.04.07 Группа SV")
	if meta.ArchivePath != want {
		t.Fatalf("archive path = %q, want %q", meta.ArchivePath, want)
	}
	if meta.VideoID == "" || meta.VideoID != VideoID(meta) {
		t.Fatalf("unexpected video id %q", meta.VideoID)
	}
}

func TestParseLeadershipWithoutSpeaker(t *testing.T) {
	p := New("/archive", []string{"ЛК"})
	meta, err := p.Parse("2024.12.01 лк Итоги года.mkv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.ContentType != model.ContentLeadership {
		t.Fatalf("expected leadership, got %q", meta.ContentType)
	}
	if meta.Speaker != "" || meta.Title != "Итоги года" {
		t.Fatalf("unexpected title %q speaker %q", meta.Title, meta.Speaker)
	}
}

func TestParseTitleCasesLowercaseSpeaker(t *testing.T) {
	meta, err := New("/a", nil).Parse("2025.01.10 PBM Продажи  (иван петров).mp4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.Speaker != "Иван Петров" {
		t.Fatalf("speaker = %q", meta.Speaker)
	}
	if meta.Title != "Продажи" {
		t.Fatalf("title = %q", meta.Title)
	}
}

func TestVideoIDIsStableSlug(t *testing.T) {
	p := New("/a", nil)
	first, err := p.Parse("2025.01.10 PBM Big Talk (Speaker).mp4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := p.Parse("/other/dir/2025.01.10 PBM Big Talk (Another).mov")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if first.VideoID != "2025-01-10-pbm-big-talk" {
		t.Fatalf("video id = %q", first.VideoID)
	}
	if first.VideoID != second.VideoID {
		t.Fatalf("video id depends on speaker or dir: %q vs %q", first.VideoID, second.VideoID)
	}
}

func TestParseRejectsUnrecognizedNames(t *testing.T) {
	p := New("/a", nil)
	for _, name := range []string{
		"holiday.mp4",
		"2025.13.40 PBM Title.mp4",
		"2025.01.10 PBM.mp4",
		"2025.01.10 PBM Title.txt",
	} {
		if _, err := p.Parse(name); !errors.Is(err, ErrUnrecognized) {
			t.Fatalf("%q: expected ErrUnrecognized, got %v", name, err)
		}
	}
}
