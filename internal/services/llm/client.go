package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Client is the text-generation capability every pipeline stage depends on.
// An empty model selects the provider's default model. Implementations must
// be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
	Chat(ctx context.Context, messages []Message, model string) (string, error)
	Close() error
}

// ErrProvider marks every failure that originates in a provider: network
// errors, non-2xx responses, empty completions.
var ErrProvider = errors.New("llm provider error")

// ProviderError carries the provider and model that failed. It matches both
// ErrProvider and the underlying cause with errors.Is.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm %s (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}

func providerError(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProviderError{Provider: provider, Model: model, Err: err}
}

// UserPrompt wraps a single prompt as a one-message conversation.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return errors.New("at least one message required")
	}
	for i, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			return fmt.Errorf("message %d: empty content", i)
		}
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
	}
	return nil
}
