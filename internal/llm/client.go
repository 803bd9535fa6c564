package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kyleking/schema-rag/internal/config"
	"github.com/kyleking/schema-rag/internal/errors"
)

// Client implements Service against one provider's HTTP API
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new LLM client with the given configuration
func NewClient(cfg Config) (*Client, error) {
	c := &Client{}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}

	return c, nil
}

// NewClientFromConfig builds a client from the application configuration
func NewClientFromConfig(cfg config.LLMConfig) (*Client, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = DefaultTimeout
	}

	return NewClient(Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     timeout,
	})
}

// Configure validates and applies cfg, filling provider defaults
func (c *Client) Configure(cfg Config) error {
	if cfg.Provider == "" {
		return errors.New(errors.ErrTypeConfig, "llm provider is required")
	}

	if cfg.Model == "" {
		return errors.New(errors.ErrTypeConfig, "llm model is required")
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return errors.New(errors.ErrTypeConfig, "API key is required for OpenAI provider").
				WithSuggestion("Set SCHEMA_RAG_LLM_API_KEY")
		}

		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenAIURL
		}
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return errors.New(errors.ErrTypeConfig, "API key is required for Anthropic provider").
				WithSuggestion("Set SCHEMA_RAG_LLM_API_KEY")
		}

		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultAnthropicURL
		}
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaURL
		}
	default:
		return errors.Newf(errors.ErrTypeConfig, "unsupported llm provider: %s", cfg.Provider).
			WithSuggestion("Use one of: openai, anthropic, ollama")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c.config = cfg
	c.httpClient = &http.Client{Timeout: cfg.Timeout}

	return nil
}

// Provider returns the configured provider name
func (c *Client) Provider() string {
	return c.config.Provider
}

// Complete sends prompt as a single user message. An empty model uses the
// configured one.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.config.Model
	}

	var (
		text string
		err  error
	)

	switch c.config.Provider {
	case ProviderOpenAI:
		text, err = c.completeOpenAI(ctx, prompt, model)
	case ProviderAnthropic:
		text, err = c.completeAnthropic(ctx, prompt, model)
	case ProviderOllama:
		text, err = c.completeOllama(ctx, prompt, model)
	default:
		return "", errors.Newf(errors.ErrTypeConfig, "unsupported llm provider: %s", c.config.Provider)
	}

	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTypeNetwork, "%s completion failed", c.config.Provider)
	}

	return text, nil
}

// OpenAI API structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeOpenAI(ctx context.Context, prompt, model string) (string, error) {
	reqBody := openAIRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	respBody, err := c.post(ctx, "/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	})
	if err != nil {
		return "", err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse OpenAI response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeAnthropic(ctx context.Context, prompt, model string) (string, error) {
	reqBody := anthropicRequest{
		Model:       model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}

	respBody, err := c.post(ctx, "/messages", reqBody, map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse Anthropic response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("Anthropic API error: %s", response.Error.Message)
	}

	var text strings.Builder

	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("no response from Anthropic")
	}

	return text.String(), nil
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) completeOllama(ctx context.Context, prompt, model string) (string, error) {
	reqBody := ollamaRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.config.Temperature,
			NumPredict:  c.config.MaxTokens,
		},
	}

	respBody, err := c.post(ctx, "/api/generate", reqBody, nil)
	if err != nil {
		return "", err
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	if response.Error != "" {
		return "", fmt.Errorf("Ollama API error: %s", response.Error)
	}

	return response.Response, nil
}

// post makes a JSON POST request and returns the body of a 200 response
func (c *Client) post(ctx context.Context, endpoint string, reqBody interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
