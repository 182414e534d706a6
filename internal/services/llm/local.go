package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout   = 300 * time.Second
	defaultLocalEndpoint = "http://127.0.0.1:11434/v1/chat/completions"

	// ProviderLocal names the OpenAI-compatible chat completion provider.
	ProviderLocal = "local"
)

// LocalConfig captures the runtime settings required to talk to an
// OpenAI-compatible chat completion endpoint (Ollama, vLLM, llama.cpp).
type LocalConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	TimeoutSeconds int
}

// options are shared by every provider constructor.
type options struct {
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes a provider.
type Option func(*options)

// WithHTTPClient overrides the default HTTP client of the local provider.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(o *options) {
		o.retry.attempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		o.retry.baseDelay = baseDelay
		o.retry.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *options) {
		o.retry.sleeper = sleeper
	}
}

func buildOptions(opts []Option) options {
	o := options{
		retry: retryPolicy{
			attempts:  defaultRetryAttempts,
			baseDelay: defaultRetryBaseDelay,
			maxDelay:  defaultRetryMaxDelay,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// LocalProvider talks to an OpenAI-compatible chat completion API.
type LocalProvider struct {
	cfg        LocalConfig
	httpClient *http.Client
	retry      retryPolicy
}

// NewLocalProvider constructs a local provider using the supplied configuration.
func NewLocalProvider(cfg LocalConfig, opts ...Option) *LocalProvider {
	o := buildOptions(opts)
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	provider := &LocalProvider{
		cfg: LocalConfig{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			Temperature:    cfg.Temperature,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: o.httpClient,
		retry:      o.retry,
	}
	if provider.cfg.BaseURL == "" {
		provider.cfg.BaseURL = defaultLocalEndpoint
	}
	if provider.httpClient == nil {
		provider.httpClient = &http.Client{Timeout: timeout}
	}
	return provider
}

// Generate sends a single user prompt.
func (p *LocalProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	return p.Chat(ctx, UserPrompt(prompt), model)
}

// Chat sends a conversation and returns the assistant reply.
func (p *LocalProvider) Chat(ctx context.Context, messages []Message, model string) (string, error) {
	model = p.resolveModel(model)
	if err := validateMessages(messages); err != nil {
		return "", providerError(ProviderLocal, model, err)
	}
	payload := chatCompletionRequest{
		Model:       model,
		Temperature: p.cfg.Temperature,
		Messages:    make([]chatMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	content, err := p.retry.do(ctx, func() (string, error) {
		return p.completeOnce(ctx, payload)
	})
	if err != nil {
		return "", providerError(ProviderLocal, model, err)
	}
	return content, nil
}

// Close releases idle keep-alive connections.
func (p *LocalProvider) Close() error {
	if p != nil && p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
	}
	return nil
}

func (p *LocalProvider) resolveModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return p.cfg.Model
	}
	return model
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	FinishReason string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, response_snippet=%s)", e.FinishReason, e.Snippet)
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some servers return the streaming schema even when stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
}

func (p *LocalProvider) completeOnce(ctx context.Context, payload chatCompletionRequest) (string, error) {
	completion, body, err := p.sendChatRequestOnce(ctx, payload)
	if err != nil {
		return "", err
	}
	content, finishReason := extractCompletionPayload(completion)
	if content != "" {
		return content, nil
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return "", &emptyContentError{FinishReason: finishReason, Snippet: summarizePayloadSnippet(string(body))}
}

func extractCompletionPayload(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (p *LocalProvider) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: http error (timeout=%s): %w", p.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return completion, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}
