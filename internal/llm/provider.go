// Package llm provides the chat-completion and embedding bridge the agent
// uses for query parsing, slot filling, and alias disambiguation. The only
// production backend is HyperCLOVA X; the interfaces exist so tests can
// substitute fakes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by providers.
var (
	ErrNoAPIKey     = errors.New("llm: API key not configured")
	ErrRateLimit    = errors.New("llm: rate limit exceeded")
	ErrProviderDown = errors.New("llm: provider unavailable")
	ErrInvalidModel = errors.New("llm: invalid model")
	ErrEmptyAnswer  = errors.New("llm: empty completion")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Response represents a complete response from the model.
type Response struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model"`
	Latency    time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatOptions configures a single chat request. Bearer, when set, replaces
// the provider's configured key for this call only; the HTTP front door
// passes the caller's token through this way.
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Bearer      string   `json:"-"`
}

// ChatProvider is the chat-completion backend interface.
type ChatProvider interface {
	// Name returns the provider identifier (e.g., "clova").
	Name() string

	// Chat sends a conversation and returns the complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// Ping checks if the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// Embedder encodes text into a dense vector; used by the ticker
// disambiguator's semantic shortlist.
type Embedder interface {
	// Embed returns the embedding for one text.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// retryBaseDelay is the first backoff interval; tests shorten it.
var retryBaseDelay = time.Second

// ChatWithRetry calls provider.Chat with up to maxAttempts attempts and
// exponential backoff (base 1s, doubling). Only rate-limit failures are
// retried: any other error indicates schema drift or a hard failure and is
// surfaced immediately.
func ChatWithRetry(ctx context.Context, provider ChatProvider, messages []Message, opts *ChatOptions, maxAttempts int) (*Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimit) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("llm: %d attempts exhausted: %w", maxAttempts, lastErr)
}
