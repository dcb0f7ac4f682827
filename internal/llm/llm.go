// Package llm provides LLM provider integrations for natural language to SQL conversion.
package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Fixed generation parameters for SQL generation.
const (
	DefaultMaxTokens   = 150
	DefaultTemperature = 0
)

// Provider defines the interface for LLM integrations.
type Provider interface {
	// Complete sends one prompt and returns a single candidate answer.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)

	// Name returns the provider name for logging/debugging.
	Name() string
}

// CompletionRequest contains the input for one completion call.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int     // 0 = DefaultMaxTokens
	Temperature float64 // sent as-is; SQL generation pins it to 0
}

// Completion is the single candidate returned by a provider.
type Completion struct {
	Text   string
	Model  string
	Tokens int // Tokens used (for cost tracking)
}

// Config holds LLM provider configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // API key for the provider
	Model     string // Model name (e.g., "gpt-4-1106-preview", "claude-sonnet-4-20250514")
	BaseURL   string // Base URL (for OpenRouter, proxies, etc.)
	MaxTokens int
}

// ConfigFromLookup reads LLM configuration through lookup. OPENAI_API_KEY is
// accepted when LLM_API_KEY is unset.
func ConfigFromLookup(lookup func(string) (string, bool)) Config {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	cfg := Config{
		Provider: strings.ToLower(get("LLM_PROVIDER")),
		APIKey:   get("LLM_API_KEY"),
		Model:    get("LLM_MODEL"),
		BaseURL:  get("LLM_BASE_URL"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = get("OPENAI_API_KEY")
	}
	if n, err := strconv.Atoi(get("LLM_MAX_TOKENS")); err == nil && n > 0 {
		cfg.MaxTokens = n
	}
	return cfg
}

// NewProvider creates an LLM provider based on configuration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	switch cfg.Provider {
	case "openai":
		if cfg.Model == "" {
			cfg.Model = "gpt-4-1106-preview"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "anthropic":
		if cfg.Model == "" {
			cfg.Model = "claude-sonnet-4-20250514"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.anthropic.com/v1"
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai, anthropic)", cfg.Provider)
	}
}

// DisplayName returns the provider label used in user-facing errors.
func DisplayName(p Provider) string {
	if p == nil {
		return "LLM"
	}
	switch p.Name() {
	case "openai":
		return "OpenAI"
	case "anthropic":
		return "Anthropic"
	default:
		return p.Name()
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxTokens
	}
	return n
}
