package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"talkvault/internal/config"
	"talkvault/internal/logging"
	"talkvault/internal/services"
)

func TestNewFromConfigWritesRotatedFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "talkvault.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"hello file"`) {
		t.Fatalf("expected JSON line in log file, got %q", content)
	}
}

func TestConsoleLoggerPromotesStageAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithStage(services.WithVideoID(context.Background(), "vid-1"), "clean")
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline"))
	logger.Info("stage complete", logging.Int("chars", 42))

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline: stage complete") {
		t.Fatalf("unexpected line prefix: %q", line)
	}
	stageAt := strings.Index(line, "stage=clean")
	charsAt := strings.Index(line, "chars=42")
	if stageAt < 0 || charsAt < 0 || stageAt > charsAt {
		t.Fatalf("expected stage promoted before other attrs: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level: %q", line)
	}
}

func TestJSONLoggerUsesLowercaseLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("dropped")
	logging.WarnWithContext(logger, "cache unreadable", "cache_load_failed")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	for _, fragment := range []string{`"level":"warn"`, `"event_type":"cache_load_failed"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in %q", fragment, out)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", DisableConsole: true}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
