package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	baseProvider
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg *ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, "openai"),
	}
}

// Reply sends the conversation to the OpenAI chat completions API.
func (p *OpenAIProvider) Reply(ctx context.Context, history []Message, latest string) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("openai: %w", ErrNotConfigured)
	}

	// Build OpenAI request: persona first, then the conversation.
	openaiReq := openAIChatRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}
	openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
		Role:    string(RoleSystem),
		Content: PersonaPrompt,
	})
	for _, msg := range conversation(history, latest) {
		openaiReq.Messages = append(openaiReq.Messages, openAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(openaiReq)
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
		return "", &TransportError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return "", &UpstreamError{Provider: "openai", Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var openaiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", &MalformedResponseError{Provider: "openai", Reason: err.Error()}
	}

	if len(openaiResp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: "openai", Reason: "no choices in response"}
	}

	// A successful response with empty content degrades to the apology
	// string rather than failing.
	content := openaiResp.Choices[0].Message.Content
	if content == "" {
		return ApologyReply, nil
	}
	return content, nil
}

// OpenAI API types
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}
