package llm

import (
	"context"
	"time"
)

// Service is the text completion capability. The returned text is the
// model's raw answer.
type Service interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Config represents LLM client configuration
type Config struct {
	Provider    string        `json:"provider"` // openai, anthropic, ollama
	Model       string        `json:"model"`
	APIKey      string        `json:"-"`
	BaseURL     string        `json:"base_url,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// Provider constants for different LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Default endpoints per provider
const (
	DefaultOpenAIURL    = "https://api.openai.com/v1"
	DefaultAnthropicURL = "https://api.anthropic.com/v1"
	DefaultOllamaURL    = "http://localhost:11434"
)

// DefaultMaxTokens caps the answer length when none is configured
const DefaultMaxTokens = 2048

// DefaultTimeout bounds a single completion request
const DefaultTimeout = 120 * time.Second
