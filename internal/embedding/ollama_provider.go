package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
)

// OllamaConfig holds configuration for the Ollama embedding provider
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OllamaProvider generates embeddings with a local Ollama server
type OllamaProvider struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewOllamaProvider creates a new Ollama embedding provider
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}

	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaProvider{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// GenerateEmbedding generates an embedding for the given text
func (p *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return embeddings[0], nil
}

// GenerateEmbeddings embeds several texts in one /api/embed call
func (p *OllamaProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}

	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama: %s", parsed.Error)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		out[i] = toFloat32(e)
	}

	return out, nil
}

// GetDimensions returns the configured vector size, 0 when unknown
func (p *OllamaProvider) GetDimensions() int {
	return p.dimensions
}

// GetName returns the provider name for identification
func (p *OllamaProvider) GetName() string {
	return "ollama:" + p.model
}
