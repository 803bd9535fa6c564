package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kyleking/schema-rag/internal/errors"
)

// MemoryIndex is a process-local Store. Nothing survives Close.
type MemoryIndex struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	lastRun  *SyncRun
	embedder Embedder
}

type memoryEntry struct {
	document  string
	metadata  map[string]string
	vector    []float32
	updatedAt time.Time
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{
		entries:  make(map[string]memoryEntry),
		embedder: embedder,
	}
}

// Upsert embeds document and stores the entry
func (m *MemoryIndex) Upsert(ctx context.Context, id, document string, metadata map[string]string) error {
	vector, err := m.embedder.GenerateEmbedding(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = memoryEntry{
		document:  document,
		metadata:  copyMetadata(metadata),
		vector:    vector,
		updatedAt: time.Now().UTC(),
	}

	return nil
}

// Delete removes the entry for id
func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)

	return nil
}

// Query ranks entries by cosine similarity to text
func (m *MemoryIndex) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	queryVector, err := m.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	m.mu.RLock()
	candidates := make([]candidate, 0, len(m.entries))

	for id, e := range m.entries {
		candidates = append(candidates, candidate{
			id:       id,
			document: e.document,
			metadata: copyMetadata(e.metadata),
			vector:   e.vector,
		})
	}
	m.mu.RUnlock()

	return rankCandidates(queryVector, candidates, k)
}

// ListAll returns every entry ordered by id
func (m *MemoryIndex) ListAll(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.entries))
	for id, e := range m.entries {
		entries = append(entries, Entry{ID: id, Metadata: copyMetadata(e.metadata), UpdatedAt: e.updatedAt})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return entries, nil
}

// Get retrieves a single entry including its document
func (m *MemoryIndex) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrTypeNotFound, "table %q is not indexed", id)
	}

	return &Entry{ID: id, Document: e.document, Metadata: copyMetadata(e.metadata), UpdatedAt: e.updatedAt}, nil
}

// GetStats returns index statistics
func (m *MemoryIndex) GetStats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{Backend: "memory", TotalEntries: len(m.entries)}

	for _, e := range m.entries {
		if e.updatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = e.updatedAt
		}
	}

	if m.lastRun != nil {
		last := *m.lastRun
		stats.LastRun = &last
	}

	return stats, nil
}

// RecordSync stores a completed sync pass
func (m *MemoryIndex) RecordSync(_ context.Context, run SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRun = &run

	return nil
}

// Clear removes every entry
func (m *MemoryIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]memoryEntry)

	return nil
}

// Close releases nothing; it exists to satisfy Index
func (m *MemoryIndex) Close() error {
	return nil
}
