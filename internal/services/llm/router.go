package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"talkvault/internal/config"
)

// ParseModel splits a provider-tagged model name such as "gemini:gemini-2.0-flash"
// into provider and model. Only the first colon is considered, and only when
// the prefix names a known provider, so "qwen2.5:14b" stays a bare model.
func ParseModel(name, defaultProvider string) (provider, model string) {
	name = strings.TrimSpace(name)
	if prefix, rest, ok := strings.Cut(name, ":"); ok {
		switch strings.ToLower(prefix) {
		case ProviderLocal, ProviderGemini:
			return strings.ToLower(prefix), strings.TrimSpace(rest)
		}
	}
	return defaultProvider, name
}

// Router dispatches each call to the provider named by the model tag.
type Router struct {
	defaultProvider string
	providers       map[string]Client
}

// NewRouter builds a router over the given providers.
func NewRouter(defaultProvider string, providers map[string]Client) *Router {
	copied := make(map[string]Client, len(providers))
	for name, client := range providers {
		if client != nil {
			copied[strings.ToLower(name)] = client
		}
	}
	return &Router{defaultProvider: strings.ToLower(defaultProvider), providers: copied}
}

// Open constructs the local and Gemini providers from configuration and
// returns a router over them.
func Open(cfg config.LLM, opts ...Option) *Router {
	attempts := cfg.MaxRetries + 1
	opts = append([]Option{WithRetryMaxAttempts(attempts)}, opts...)
	local := NewLocalProvider(LocalConfig{
		BaseURL:        cfg.LocalBaseURL,
		APIKey:         cfg.LocalAPIKey,
		Temperature:    cfg.Temperature,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, opts...)
	gemini := NewGeminiProvider(GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		Temperature: cfg.Temperature,
	}, opts...)
	return NewRouter(cfg.DefaultProvider, map[string]Client{
		ProviderLocal:  local,
		ProviderGemini: gemini,
	})
}

// WithClient opens a router, runs fn, and closes the router even when fn
// fails or panics.
func WithClient(cfg config.LLM, fn func(Client) error) (err error) {
	router := Open(cfg)
	defer func() {
		if closeErr := router.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close llm clients: %w", closeErr)
		}
	}()
	return fn(router)
}

// Generate routes a single prompt.
func (r *Router) Generate(ctx context.Context, prompt, model string) (string, error) {
	client, bare, err := r.route(model)
	if err != nil {
		return "", err
	}
	return client.Generate(ctx, prompt, bare)
}

// Chat routes a conversation.
func (r *Router) Chat(ctx context.Context, messages []Message, model string) (string, error) {
	client, bare, err := r.route(model)
	if err != nil {
		return "", err
	}
	return client.Chat(ctx, messages, bare)
}

// Close closes every provider and joins their errors.
func (r *Router) Close() error {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := r.providers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) route(model string) (Client, string, error) {
	provider, bare := ParseModel(model, r.defaultProvider)
	client, ok := r.providers[provider]
	if !ok {
		return nil, "", &ProviderError{Provider: provider, Model: bare, Err: errors.New("provider not configured")}
	}
	return client, bare, nil
}
