package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DeepSeekProvider implements the Provider interface for DeepSeek.
// DeepSeek exposes an OpenAI-compatible chat completions API.
type DeepSeekProvider struct {
	baseProvider
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(cfg *ProviderConfig) *DeepSeekProvider {
	return &DeepSeekProvider{
		baseProvider: newBaseProvider(cfg, "deepseek"),
	}
}

// Reply sends the conversation to the DeepSeek chat completions API.
func (p *DeepSeekProvider) Reply(ctx context.Context, history []Message, latest string) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("deepseek: %w", ErrNotConfigured)
	}

	dsReq := deepSeekChatRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
	dsReq.Messages = append(dsReq.Messages, deepSeekMessage{
		Role:    string(RoleSystem),
		Content: PersonaPrompt,
	})
	for _, msg := range conversation(history, latest) {
		dsReq.Messages = append(dsReq.Messages, deepSeekMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(dsReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Provider: "deepseek", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return "", &UpstreamError{Provider: "deepseek", Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var dsResp deepSeekChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&dsResp); err != nil {
		return "", &MalformedResponseError{Provider: "deepseek", Reason: err.Error()}
	}

	if len(dsResp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: "deepseek", Reason: "no choices in response"}
	}

	content := dsResp.Choices[0].Message.Content
	if content == "" {
		return ApologyReply, nil
	}
	return content, nil
}

// DeepSeek API types (OpenAI-compatible)
type deepSeekChatRequest struct {
	Model       string            `json:"model"`
	Messages    []deepSeekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int             `json:"index"`
		Message      deepSeekMessage `json:"message"`
		FinishReason string          `json:"finish_reason"`
	} `json:"choices"`
}
