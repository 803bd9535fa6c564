package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/kyleking/schema-rag/internal/cache"
	"github.com/kyleking/schema-rag/internal/config"
)

// DefaultCacheTTL applies when the configured cache TTL does not parse
const DefaultCacheTTL = 30 * 24 * time.Hour

// Manager wraps an embedding Provider for use by the vector index
type Manager struct {
	provider Provider
}

// NewManager creates a Manager from the given config
func NewManager(cfg config.EmbeddingConfig) (*Manager, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	// hash vectors are computed locally and never cached
	if cfg.CacheDir != "" && cfg.Provider != "hash" && cfg.Provider != "" {
		ttl, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil || ttl <= 0 {
			ttl = DefaultCacheTTL
		}

		fc, err := cache.NewFileCache(cfg.CacheDir, cfg.CacheMaxSizeMB, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}

		provider = NewCachedProvider(provider, fc)
	}

	return &Manager{provider: provider}, nil
}

// NewManagerWithProvider wraps an already constructed provider
func NewManagerWithProvider(provider Provider) *Manager {
	return &Manager{provider: provider}
}

// GenerateEmbedding generates an embedding vector for the given text
func (m *Manager) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := m.checkDimensions(vec); err != nil {
		return nil, err
	}

	return vec, nil
}

// GenerateEmbeddings embeds texts in one call when the provider supports it
func (m *Manager) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if bp, ok := m.provider.(BatchProvider); ok {
		vecs, err := bp.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return nil, err
		}

		for _, v := range vecs {
			if err := m.checkDimensions(v); err != nil {
				return nil, err
			}
		}

		return vecs, nil
	}

	vecs := make([][]float32, len(texts))

	for i, text := range texts {
		v, err := m.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}

		vecs[i] = v
	}

	return vecs, nil
}

// GetDimensions returns the embedding dimensions
func (m *Manager) GetDimensions() int {
	return m.provider.GetDimensions()
}

// GetName returns the wrapped provider's name
func (m *Manager) GetName() string {
	return m.provider.GetName()
}

// Identity names the provider and its dimensions. Vectors produced under
// different identities are not comparable.
func (m *Manager) Identity() string {
	return fmt.Sprintf("%s/%d", m.GetName(), m.GetDimensions())
}

func (m *Manager) checkDimensions(vec []float32) error {
	if want := m.provider.GetDimensions(); want > 0 && len(vec) != want {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", want, len(vec))
	}

	return nil
}
