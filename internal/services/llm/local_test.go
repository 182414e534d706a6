package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}
}

func TestLocalProviderGenerate(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		completionHandler(t, "  cleaned text  ")(w, r)
	}))
	defer server.Close()

	provider := NewLocalProvider(LocalConfig{BaseURL: server.URL, APIKey: "secret", Model: "fallback-model", Temperature: 0.3})
	out, err := provider.Generate(context.Background(), "clean this", "qwen2.5:14b")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "cleaned text" {
		t.Fatalf("unexpected content %q", out)
	}
	if got.Model != "qwen2.5:14b" {
		t.Fatalf("expected model to be forwarded, got %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "clean this" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestLocalProviderUsesDefaultModel(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		completionHandler(t, "ok")(w, r)
	}))
	defer server.Close()

	provider := NewLocalProvider(LocalConfig{BaseURL: server.URL, Model: "fallback-model"})
	if _, err := provider.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, ""); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if got.Model != "fallback-model" {
		t.Fatalf("expected default model, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestLocalProviderRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		completionHandler(t, "ok")(w, r)
	}))
	defer server.Close()

	var sleeps []time.Duration
	provider := NewLocalProvider(
		LocalConfig{BaseURL: server.URL, Model: "m"},
		WithRetryBackoff(100*time.Millisecond, time.Second),
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	out, err := provider.Generate(context.Background(), "prompt", "")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected content %q", out)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(sleeps) != 2 || sleeps[0] != 100*time.Millisecond || sleeps[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff sequence %v", sleeps)
	}
}

func TestLocalProviderHonoursRetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		completionHandler(t, "ok")(w, r)
	}))
	defer server.Close()

	var sleeps []time.Duration
	provider := NewLocalProvider(
		LocalConfig{BaseURL: server.URL, Model: "m"},
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	if _, err := provider.Generate(context.Background(), "prompt", ""); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 3*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", sleeps)
	}
}

func TestLocalProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	provider := NewLocalProvider(LocalConfig{BaseURL: server.URL, Model: "m"}, WithSleeper(func(time.Duration) {}))
	_, err := provider.Generate(context.Background(), "prompt", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || providerErr.Provider != ProviderLocal || providerErr.Model != "m" {
		t.Fatalf("expected provider error details, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestLocalProviderRetriesEmptyContent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			completionHandler(t, "   ")(w, r)
			return
		}
		completionHandler(t, "filled")(w, r)
	}))
	defer server.Close()

	provider := NewLocalProvider(LocalConfig{BaseURL: server.URL, Model: "m"}, WithSleeper(func(time.Duration) {}))
	out, err := provider.Generate(context.Background(), "prompt", "")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "filled" {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestLocalProviderRejectsEmptyMessages(t *testing.T) {
	provider := NewLocalProvider(LocalConfig{BaseURL: "http://127.0.0.1:1", Model: "m"})
	if _, err := provider.Chat(context.Background(), nil, ""); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider for empty conversation, got %v", err)
	}
}

func TestLocalProviderStopsOnCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	provider := NewLocalProvider(LocalConfig{BaseURL: server.URL, Model: "m"}, WithSleeper(func(time.Duration) { cancel() }))
	_, err := provider.Generate(ctx, "prompt", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	policy := retryPolicy{baseDelay: time.Second, maxDelay: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := policy.backoffDelay(i + 1); got != expected {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, expected)
		}
	}
}
