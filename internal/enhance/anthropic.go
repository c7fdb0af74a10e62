package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultAnthropicModel is used when no model is configured
const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	maxTokens        = 8192
)

// AnthropicRefiner calls the Anthropic messages API to rewrite transcripts
type AnthropicRefiner struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicRefiner creates a refiner. model may be empty to use the
// default.
func NewAnthropicRefiner(apiKey, model string) *AnthropicRefiner {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicRefiner{
		apiKey:  apiKey,
		model:   model,
		baseURL: anthropicBaseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Refine sends the instruction plus transcript as a single user message
// and returns the model's text
func (r *AnthropicRefiner) Refine(ctx context.Context, instruction, text string) (string, error) {
	prompt := instruction + "\n\nTranscript:\n" + text

	body, err := json.Marshal(anthropicRequest{
		Model:     r.model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("anthropic http %d: %s", resp.StatusCode, string(b))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic response contained no text block")
}

// NewAnthropicRefinerForTests creates a refiner pointed at a test server
func NewAnthropicRefinerForTests(apiKey, model, baseURL string, client *http.Client) *AnthropicRefiner {
	return &AnthropicRefiner{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}
