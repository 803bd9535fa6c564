package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kyleking/schema-rag/internal/cache"
)

// CachedProvider serves repeated texts from a local cache so that re-syncing
// unchanged documents does not hit a remote embedding endpoint again.
type CachedProvider struct {
	provider Provider
	cache    cache.Cache
}

// NewCachedProvider wraps provider with c
func NewCachedProvider(provider Provider, c cache.Cache) *CachedProvider {
	return &CachedProvider{provider: provider, cache: c}
}

// GenerateEmbedding returns the cached vector for text or computes and stores it
func (p *CachedProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.lookup(ctx, text); ok {
		return vec, nil
	}

	vec, err := p.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	p.store(ctx, text, vec)

	return vec, nil
}

// GenerateEmbeddings only sends the texts missing from the cache to the provider
func (p *CachedProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))

	var (
		missing []string
		slots   []int
	)

	for i, text := range texts {
		if vec, ok := p.lookup(ctx, text); ok {
			vecs[i] = vec
			continue
		}

		missing = append(missing, text)
		slots = append(slots, i)
	}

	if len(missing) == 0 {
		return vecs, nil
	}

	var (
		computed [][]float32
		err      error
	)

	if bp, ok := p.provider.(BatchProvider); ok {
		computed, err = bp.GenerateEmbeddings(ctx, missing)
	} else {
		computed = make([][]float32, len(missing))
		for i, text := range missing {
			if computed[i], err = p.provider.GenerateEmbedding(ctx, text); err != nil {
				break
			}
		}
	}

	if err != nil {
		return nil, err
	}

	if len(computed) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(missing), len(computed))
	}

	for i, vec := range computed {
		vecs[slots[i]] = vec
		p.store(ctx, missing[i], vec)
	}

	return vecs, nil
}

// GetDimensions returns the wrapped provider's dimensions
func (p *CachedProvider) GetDimensions() int {
	return p.provider.GetDimensions()
}

// GetName returns the wrapped provider's name
func (p *CachedProvider) GetName() string {
	return p.provider.GetName()
}

func (p *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s|%d|%s", p.provider.GetName(), p.provider.GetDimensions(), hex.EncodeToString(sum[:]))
}

func (p *CachedProvider) lookup(ctx context.Context, text string) ([]float32, bool) {
	data, err := p.cache.Get(ctx, p.key(text))
	if err != nil {
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}

	return vec, true
}

// store is best effort
func (p *CachedProvider) store(ctx context.Context, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}

	_ = p.cache.Set(ctx, p.key(text), data, 0)
}
