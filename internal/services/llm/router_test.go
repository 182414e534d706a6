package llm

import (
	"context"
	"errors"
	"testing"
)

type recordingClient struct {
	name    string
	models  []string
	closed  bool
	closeEr error
}

func (c *recordingClient) Generate(_ context.Context, _ string, model string) (string, error) {
	c.models = append(c.models, model)
	return c.name, nil
}

func (c *recordingClient) Chat(_ context.Context, _ []Message, model string) (string, error) {
	c.models = append(c.models, model)
	return c.name, nil
}

func (c *recordingClient) Close() error {
	c.closed = true
	return c.closeEr
}

func TestParseModel(t *testing.T) {
	cases := []struct {
		in           string
		wantProvider string
		wantModel    string
	}{
		{"gemini:gemini-2.0-flash", "gemini", "gemini-2.0-flash"},
		{"local:qwen2.5:14b", "local", "qwen2.5:14b"},
		{"qwen2.5:14b", "local", "qwen2.5:14b"},
		{"GEMINI:gemini-pro", "gemini", "gemini-pro"},
		{"llama3", "local", "llama3"},
		{"", "local", ""},
	}
	for _, tc := range cases {
		provider, model := ParseModel(tc.in, "local")
		if provider != tc.wantProvider || model != tc.wantModel {
			t.Fatalf("ParseModel(%q) = (%q, %q), want (%q, %q)", tc.in, provider, model, tc.wantProvider, tc.wantModel)
		}
	}
}

func TestRouterDispatchesByTag(t *testing.T) {
	local := &recordingClient{name: "local"}
	gemini := &recordingClient{name: "gemini"}
	router := NewRouter("local", map[string]Client{"local": local, "gemini": gemini})

	out, err := router.Generate(context.Background(), "p", "gemini:gemini-2.0-flash")
	if err != nil || out != "gemini" {
		t.Fatalf("expected gemini route, got %q err=%v", out, err)
	}
	out, err = router.Chat(context.Background(), UserPrompt("p"), "qwen2.5:14b")
	if err != nil || out != "local" {
		t.Fatalf("expected local route, got %q err=%v", out, err)
	}
	if len(gemini.models) != 1 || gemini.models[0] != "gemini-2.0-flash" {
		t.Fatalf("expected bare model for gemini, got %v", gemini.models)
	}
	if len(local.models) != 1 || local.models[0] != "qwen2.5:14b" {
		t.Fatalf("expected bare model for local, got %v", local.models)
	}
}

func TestRouterMissingProvider(t *testing.T) {
	router := NewRouter("local", map[string]Client{"local": &recordingClient{name: "local"}})
	_, err := router.Generate(context.Background(), "p", "gemini:x")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestRouterCloseJoinsErrors(t *testing.T) {
	local := &recordingClient{name: "local", closeEr: errors.New("boom")}
	gemini := &recordingClient{name: "gemini"}
	router := NewRouter("local", map[string]Client{"local": local, "gemini": gemini})
	err := router.Close()
	if err == nil {
		t.Fatal("expected close error")
	}
	if !local.closed || !gemini.closed {
		t.Fatal("expected every provider to be closed")
	}
}
