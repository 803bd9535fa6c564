package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kyleking/schema-rag/internal/embedding"
)

// TestDimensions is the vector size used by test indexes
const TestDimensions = 128

// NewTestIndex creates an initialized index for the named backend ("duckdb",
// "sqlite" or "memory") backed by the hash embedder. The index lives in
// t.TempDir and is closed when the test finishes.
func NewTestIndex(t *testing.T, backend string) Store {
	t.Helper()

	embedder := embedding.NewHashProvider(TestDimensions)

	if backend == "memory" {
		return NewMemoryIndex(embedder)
	}

	idx, err := OpenSQLIndex(SQLOptions{
		Driver:     backend,
		Path:       filepath.Join(t.TempDir(), "index.db"),
		Collection: "test",
	}, embedder)
	if err != nil {
		t.Fatalf("failed to create test index: %v", err)
	}

	if err := idx.Initialize(context.Background()); err != nil {
		_ = idx.Close()
		t.Fatalf("failed to initialize test index: %v", err)
	}

	t.Cleanup(func() {
		if err := idx.Close(); err != nil {
			t.Errorf("failed to close test index: %v", err)
		}
	})

	return idx
}

// FaultyIndex wraps a Store and fails selected operations on demand
type FaultyIndex struct {
	Store

	mu         sync.Mutex
	upsertErrs map[string]error
	deleteErrs map[string]error
	listErr    error
	queryErr   error

	Upserts []string
	Deletes []string
}

// NewFaultyIndex wraps inner
func NewFaultyIndex(inner Store) *FaultyIndex {
	return &FaultyIndex{
		Store:      inner,
		upsertErrs: make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

// FailUpsert makes Upsert of id return err
func (f *FaultyIndex) FailUpsert(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErrs[id] = err
}

// FailDelete makes Delete of id return err
func (f *FaultyIndex) FailDelete(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErrs[id] = err
}

// FailList makes ListAll return err
func (f *FaultyIndex) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// FailQuery makes Query return err
func (f *FaultyIndex) FailQuery(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErr = err
}

// Reset clears recorded calls and injected failures
func (f *FaultyIndex) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upsertErrs = make(map[string]error)
	f.deleteErrs = make(map[string]error)
	f.listErr = nil
	f.queryErr = nil
	f.Upserts = nil
	f.Deletes = nil
}

func (f *FaultyIndex) Upsert(ctx context.Context, id, document string, metadata map[string]string) error {
	f.mu.Lock()
	f.Upserts = append(f.Upserts, id)
	err := f.upsertErrs[id]
	f.mu.Unlock()

	if err != nil {
		return err
	}

	return f.Store.Upsert(ctx, id, document, metadata)
}

func (f *FaultyIndex) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.Deletes = append(f.Deletes, id)
	err := f.deleteErrs[id]
	f.mu.Unlock()

	if err != nil {
		return err
	}

	return f.Store.Delete(ctx, id)
}

func (f *FaultyIndex) ListAll(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	err := f.listErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return f.Store.ListAll(ctx)
}

func (f *FaultyIndex) Query(ctx context.Context, text string, k int) ([]Match, error) {
	f.mu.Lock()
	err := f.queryErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return f.Store.Query(ctx, text, k)
}
