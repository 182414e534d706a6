package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"talkvault/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcribe", "whisperx", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestStageFailureCarriesStage(t *testing.T) {
	base := errors.New("disk full")
	err := services.StageFailure(services.ErrExternalTool, "save", "write", "archive write failed", base)
	wrapped := fmt.Errorf("process: %w", err)

	stage, ok := services.StageOf(wrapped)
	if !ok || stage != "save" {
		t.Fatalf("expected stage save, got %q ok=%v", stage, ok)
	}
	if !errors.Is(wrapped, services.ErrExternalTool) || !errors.Is(wrapped, base) {
		t.Fatalf("expected marker and cause to unwrap, got %v", wrapped)
	}
	if !strings.HasPrefix(err.Error(), "stage save failed") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRetryableMapping(t *testing.T) {
	if services.Retryable(services.Wrap(services.ErrValidation, "parse", "filename", "invalid", nil)) {
		t.Fatal("validation errors must not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrTransient, "clean", "llm", "timeout", errors.New("io"))) {
		t.Fatal("transient errors should be retryable")
	}
	if services.Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if _, ok := services.StageOf(errors.New("plain")); ok {
		t.Fatal("plain errors carry no stage")
	}
}
