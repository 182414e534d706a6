package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"talkvault/internal/model"
	"talkvault/internal/stagecache"
)

func TestRenderTablePlainWhenPiped(t *testing.T) {
	out := renderTable(
		[]column{{title: "Stage"}, {title: "Version", numeric: true}},
		[][]string{{"summarize", "12"}, {"clean"}},
		false,
	)
	if strings.ContainsAny(out, "╭╰│") {
		t.Fatalf("piped table should be ASCII, got:\n%s", out)
	}
	for _, want := range []string{"STAGE", "summarize", "12", "clean"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, [][]string{{"x"}}, false) != "" {
		t.Error("table without columns should render empty")
	}
}

func TestRenderTableRoundedOnTerminal(t *testing.T) {
	out := renderTable([]column{{title: "Tool"}}, [][]string{{"ffmpeg"}}, true)
	if !strings.Contains(out, "╭") {
		t.Fatalf("terminal table should use rounded style, got:\n%s", out)
	}
}

func TestEncodeJSONKeepsTitlesReadable(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, map[string]string{"title": "Продукт <и> команда"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(buf.String(), "Продукт <и> команда") {
		t.Fatalf("title escaped: %s", buf.String())
	}
}

func TestCacheListJSONWithNoMatchesIsEmptyArray(t *testing.T) {
	env := setupCLIEnv(t)
	archivePath := filepath.Join(env.archiveDir, "2024", "ПШБ", "2024-03-15 Продукт")
	if _, err := stagecache.New(nil).Save(context.Background(), archivePath, "summarize", model.Summary{}, "local:qwen", "", nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := env.run(t, "cache", "list", archivePath, "--stage", "story", "--json")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}

	out, err = env.run(t, "cache", "list", archivePath, "--stage", "story")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "No cached results")
}
