package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	baseProvider
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg *ProviderConfig) *GeminiProvider {
	return &GeminiProvider{
		baseProvider: newBaseProvider(cfg, "gemini"),
	}
}

// Reply sends the conversation to the Gemini generateContent API.
func (p *GeminiProvider) Reply(ctx context.Context, history []Message, latest string) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("gemini: %w", ErrNotConfigured)
	}

	geminiReq := geminiGenerateRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: PersonaPrompt}},
		},
	}
	geminiReq.GenerationConfig.MaxOutputTokens = p.config.MaxTokens
	geminiReq.GenerationConfig.Temperature = p.config.Temperature

	// Gemini uses "user" and "model" instead of "assistant".
	for _, msg := range conversation(history, latest) {
		role := string(msg.Role)
		if msg.Role == RoleAssistant {
			role = "model"
		}
		geminiReq.Contents = append(geminiReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// Key goes in a header rather than the URL to keep it out of logs.
	url := fmt.Sprintf("%s/models/%s:generateContent", p.config.Endpoint, p.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Provider: "gemini", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return "", &UpstreamError{Provider: "gemini", Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var geminiResp geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", &MalformedResponseError{Provider: "gemini", Reason: err.Error()}
	}

	if len(geminiResp.Candidates) == 0 {
		return "", &MalformedResponseError{Provider: "gemini", Reason: "no candidates in response"}
	}

	var content string
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		content += part.Text
	}
	if content == "" {
		return ApologyReply, nil
	}
	return content, nil
}

// Gemini API types
type geminiGenerateRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}
