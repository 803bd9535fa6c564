package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/schema-rag/internal/cache"
	"github.com/kyleking/schema-rag/internal/config"
)

type countingProvider struct {
	calls atomic.Int32
	texts atomic.Int32
	err   error
}

func (p *countingProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	p.texts.Add(1)

	if p.err != nil {
		return nil, p.err
	}

	return []float32{float32(len(text)), 1}, nil
}

func (p *countingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		p.texts.Add(1)
		vecs[i] = []float32{float32(len(text)), 1}
	}

	return vecs, p.err
}

func (p *countingProvider) GetDimensions() int { return 2 }
func (p *countingProvider) GetName() string    { return "counting" }

func newFileCache(t *testing.T) *cache.FileCache {
	t.Helper()

	fc, err := cache.NewFileCache(t.TempDir(), 10, time.Hour)
	require.NoError(t, err)

	return fc
}

func TestCachedProviderSingle(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, newFileCache(t))
	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, "orders")
	require.NoError(t, err)

	b, err := p.GenerateEmbedding(ctx, "orders")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, "counting", p.GetName())
	assert.Equal(t, 2, p.GetDimensions())
}

func TestCachedProviderBatchOnlySendsMisses(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, newFileCache(t))
	ctx := context.Background()

	_, err := p.GenerateEmbedding(ctx, "bb")
	require.NoError(t, err)

	vecs, err := p.GenerateEmbeddings(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vecs)
	assert.EqualValues(t, 3, inner.texts.Load(), "bb should come from the cache")

	_, err = p.GenerateEmbeddings(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedProviderErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{err: fmt.Errorf("endpoint down")}
	p := NewCachedProvider(inner, newFileCache(t))
	ctx := context.Background()

	_, err := p.GenerateEmbedding(ctx, "orders")
	require.Error(t, err)

	inner.err = nil

	vec, err := p.GenerateEmbedding(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 1}, vec)
}

func TestCachedProviderKeyIncludesProvider(t *testing.T) {
	fc := newFileCache(t)
	ctx := context.Background()

	_, err := NewCachedProvider(&countingProvider{}, fc).GenerateEmbedding(ctx, "orders")
	require.NoError(t, err)

	other := NewCachedProvider(&fixedProvider{vec: []float32{9, 9}, dim: 2}, fc)

	vec, err := other.GenerateEmbedding(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, vec)
}

func TestNewManagerCachesRemoteProvider(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"embeddings": [[0.5, 0.5]]}`))
	}))
	defer server.Close()

	cfg := config.EmbeddingConfig{
		Provider:       "ollama",
		BaseURL:        server.URL,
		Dimensions:     2,
		Timeout:        "5s",
		CacheDir:       t.TempDir(),
		CacheTTL:       "1h",
		CacheMaxSizeMB: 1,
	}

	// a second manager over the same directory reads what the first wrote
	for range 2 {
		m, err := NewManager(cfg)
		require.NoError(t, err)

		vec, err := m.GenerateEmbedding(context.Background(), "customers")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0.5, 0.5}, vec, 1e-6)
	}

	assert.EqualValues(t, 1, requests.Load())
}
