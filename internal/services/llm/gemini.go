package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// ProviderGemini names the Google Gemini provider.
	ProviderGemini = "gemini"

	defaultGeminiModel = "gemini-2.0-flash"
)

// GeminiConfig captures the runtime settings required to talk to Gemini.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
}

// GeminiProvider implements Client on top of the Gemini SDK. The SDK client is
// created lazily on first use so configurations that never route to Gemini
// do not need credentials.
type GeminiProvider struct {
	cfg   GeminiConfig
	retry retryPolicy

	mu     sync.Mutex
	client *genai.Client
	closed bool
}

// NewGeminiProvider constructs a Gemini provider.
func NewGeminiProvider(cfg GeminiConfig, opts ...Option) *GeminiProvider {
	o := buildOptions(opts)
	o.retry.classify = classifyGeminiError
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	return &GeminiProvider{cfg: cfg, retry: o.retry}
}

// Generate sends a single user prompt.
func (p *GeminiProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	return p.Chat(ctx, UserPrompt(prompt), model)
}

// Chat sends a conversation. System messages become the system instruction;
// every message but the last becomes chat history.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.cfg.Model
	}
	if err := validateMessages(messages); err != nil {
		return "", providerError(ProviderGemini, model, err)
	}
	client, err := p.sdk(ctx)
	if err != nil {
		return "", providerError(ProviderGemini, model, err)
	}

	gm := client.GenerativeModel(model)
	gm.Temperature = toPtr(float32(p.cfg.Temperature))

	var system []string
	var turns []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 {
		return "", providerError(ProviderGemini, model, errors.New("no user message"))
	}

	last := turns[len(turns)-1]
	history := make([]*genai.Content, 0, len(turns)-1)
	for _, msg := range turns[:len(turns)-1] {
		history = append(history, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	content, err := p.retry.do(ctx, func() (string, error) {
		session := gm.StartChat()
		session.History = history
		resp, err := session.SendMessage(ctx, genai.Text(last.Content))
		if err != nil {
			return "", err
		}
		return geminiText(resp)
	})
	if err != nil {
		return "", providerError(ProviderGemini, model, err)
	}
	return content, nil
}

// Close releases the SDK client. Further calls fail.
func (p *GeminiProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("gemini client closed")
	}
	if p.client != nil {
		return p.client, nil
	}
	if p.cfg.APIKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.client = client
	return client, nil
}

func geminiRole(role Role) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason.String())
		}
		return "", errors.New("empty candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", &emptyContentError{FinishReason: candidate.FinishReason.String(), Snippet: "<no content>"}
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", &emptyContentError{FinishReason: candidate.FinishReason.String(), Snippet: "<empty>"}
	}
	return out, nil
}

func classifyGeminiError(err error) (time.Duration, bool) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	if !retryableStatus(apiErr.Code) {
		return 0, false
	}
	if apiErr.Header != nil {
		if delay, ok := parseRetryAfter(apiErr.Header.Get("Retry-After")); ok {
			return delay, true
		}
	}
	return 0, true
}

func toPtr[T any](v T) *T {
	return &v
}
