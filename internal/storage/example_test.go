package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kyleking/schema-rag/internal/embedding"
)

// ExampleSQLIndex demonstrates basic usage of the SQLite-backed index
func ExampleSQLIndex() {
	tempDir, _ := os.MkdirTemp("", "example_test")
	defer os.RemoveAll(tempDir)

	idx, err := OpenSQLIndex(SQLOptions{
		Driver:     DriverSQLite,
		Path:       filepath.Join(tempDir, "example.db"),
		Collection: "database_schemas",
	}, embedding.NewHashProvider(64))
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer idx.Close()

	ctx := context.Background()

	if err := idx.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize index: %v", err)
	}

	_ = idx.Upsert(ctx, "orders", "Table: orders\nDescription: Customer orders with totals", map[string]string{MetaFingerprint: "a1"})
	_ = idx.Upsert(ctx, "stations", "Table: stations\nDescription: Weather stations", map[string]string{MetaFingerprint: "b2"})

	matches, err := idx.Query(ctx, "customer order totals", 1)
	if err != nil {
		log.Fatalf("Failed to query: %v", err)
	}

	for _, m := range matches {
		fmt.Printf("%s (fingerprint %s)\n", m.ID, m.Metadata[MetaFingerprint])
	}

	entries, _ := idx.ListAll(ctx)
	fmt.Printf("Index contains %d tables\n", len(entries))

	// Output:
	// orders (fingerprint a1)
	// Index contains 2 tables
}
