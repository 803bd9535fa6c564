package storage

import (
	"context"
	"fmt"

	"github.com/kyleking/schema-rag/internal/config"
)

// NewStoreFromConfig opens and initializes the backend named by cfg.Backend
func NewStoreFromConfig(ctx context.Context, cfg config.IndexConfig, embedder Embedder) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryIndex(embedder), nil
	case DriverDuckDB, DriverSQLite:
		idx, err := OpenSQLIndex(SQLOptions{
			Driver:         cfg.Backend,
			Path:           cfg.Path,
			Collection:     cfg.Collection,
			MaxConnections: cfg.MaxConnections,
		}, embedder)
		if err != nil {
			return nil, err
		}

		if err := idx.Initialize(ctx); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to initialize index: %w", err)
		}

		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}
