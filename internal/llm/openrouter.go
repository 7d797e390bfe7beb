package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenRouterProvider implements the Provider interface for OpenRouter.
// OpenRouter fronts many models through a unified OpenAI-compatible API.
type OpenRouterProvider struct {
	baseProvider
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(cfg *ProviderConfig) *OpenRouterProvider {
	return &OpenRouterProvider{
		baseProvider: newBaseProvider(cfg, "openrouter"),
	}
}

// Reply sends the conversation to the OpenRouter chat completions API.
func (p *OpenRouterProvider) Reply(ctx context.Context, history []Message, latest string) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("openrouter: %w", ErrNotConfigured)
	}

	orReq := openRouterChatRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
	orReq.Messages = append(orReq.Messages, openRouterMessage{
		Role:    string(RoleSystem),
		Content: PersonaPrompt,
	})
	for _, msg := range conversation(history, latest) {
		orReq.Messages = append(orReq.Messages, openRouterMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(orReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("X-Title", "Jarvis")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Provider: "openrouter", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return "", &UpstreamError{Provider: "openrouter", Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var orResp openRouterChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return "", &MalformedResponseError{Provider: "openrouter", Reason: err.Error()}
	}

	if len(orResp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: "openrouter", Reason: "no choices in response"}
	}

	content := orResp.Choices[0].Message.Content
	if content == "" {
		return ApologyReply, nil
	}
	return content, nil
}

// OpenRouter API types (OpenAI-compatible)
type openRouterChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int               `json:"index"`
		Message      openRouterMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
}
