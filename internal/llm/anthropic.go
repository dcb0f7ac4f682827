package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicProvider talks to the Anthropic messages API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropicProvider(apiKey, model, baseURL string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete returns the first text block of the reply.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	temperature := req.Temperature
	payload := anthropicRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
		Temperature: &temperature,
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}

	var result anthropicResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/messages", headers, payload, &result, nestedErrorMessage); err != nil {
		return Completion{}, err
	}

	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			return Completion{
				Text:   strings.TrimSpace(block.Text),
				Model:  p.model,
				Tokens: result.Usage.InputTokens + result.Usage.OutputTokens,
			}, nil
		}
	}
	return Completion{}, fmt.Errorf("no text in response")
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
