package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kyleking/schema-rag/internal/config"
)

// Provider defines the interface for embedding providers
type Provider interface {
	// GenerateEmbedding generates an embedding for the given text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GetDimensions returns the dimensionality of embeddings produced by this provider
	GetDimensions() int

	// GetName returns the provider name for identification
	GetName() string
}

// BatchProvider is implemented by providers with a native batch endpoint
type BatchProvider interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the provider named by cfg.Provider
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case "hash", "":
		return NewHashProvider(cfg.Dimensions), nil
	case "ollama":
		return NewOllamaProvider(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    timeout,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// DefaultTimeout bounds a single remote embedding request
const DefaultTimeout = 60 * time.Second

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}

	return out
}
