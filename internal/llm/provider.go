// Package llm provides the remote reply providers for Jarvis.
// Supported providers: OpenAI, DeepSeek, Google Gemini, and OpenRouter.
// The local rule-based responder lives in internal/assistant; everything
// here performs exactly one network call per invocation.
package llm

import (
	"context"
	"io"
	"net/http"
	"time"
)

// MaxErrorBodySize limits how much of an error response body is read (1MB).
// This prevents memory exhaustion from malformed upstream error payloads.
const MaxErrorBodySize = 1 * 1024 * 1024

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Role identifies who produced a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn handed to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface all remote reply providers implement.
//
// Reply performs a single chat completion call. The supplied history is
// in chronological order; latest is the user text being answered. Each
// adapter embeds the persona preamble itself, so callers never have to
// assemble system messages.
type Provider interface {
	// Name returns the provider identifier (openai, deepseek, gemini, openrouter).
	Name() string

	// Available reports whether the provider is enabled and credentialed.
	Available() bool

	// Reply sends the conversation to the provider and returns the reply text.
	Reply(ctx context.Context, history []Message, latest string) (string, error)
}

// ProviderConfig contains configuration for a remote provider.
type ProviderConfig struct {
	// Name identifies the provider (openai, deepseek, gemini, openrouter).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the model identifier to request.
	Model string

	// Enabled gates the provider regardless of credentials.
	Enabled bool

	// MaxTokens caps the reply length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// Timeout for the HTTP call.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a provider.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "openai":
		return &ProviderConfig{
			Name:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-3.5-turbo",
			MaxTokens:   150,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		}
	case "deepseek":
		return &ProviderConfig{
			Name:        "deepseek",
			Endpoint:    "https://api.deepseek.com/v1",
			Model:       "deepseek-chat",
			MaxTokens:   150,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		}
	case "gemini":
		return &ProviderConfig{
			Name:        "gemini",
			Endpoint:    "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-1.5-flash",
			MaxTokens:   150,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		}
	case "openrouter":
		return &ProviderConfig{
			Name:        "openrouter",
			Endpoint:    "https://openrouter.ai/api",
			Model:       "openrouter/auto",
			MaxTokens:   150,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		}
	default:
		return &ProviderConfig{
			Name:        name,
			MaxTokens:   150,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		}
	}
}

// baseProvider provides common functionality for HTTP-based providers.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a new base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(providerName)
	}

	defaults := DefaultConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = providerName

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available reports whether the provider is enabled with an API key.
func (b *baseProvider) Available() bool {
	return b.config.Enabled && b.config.APIKey != ""
}

// conversation assembles the message list sent upstream: the supplied
// history in chronological order, with the latest user text appended
// unless the history already ends with it.
func conversation(history []Message, latest string) []Message {
	if n := len(history); n > 0 && history[n-1].Role == RoleUser && history[n-1].Content == latest {
		return history
	}
	out := make([]Message, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, Message{Role: RoleUser, Content: latest})
	return out
}
