package storage

import (
	"context"
	"time"
)

// Metadata keys written by the synchronizer
const (
	MetaFingerprint = "fingerprint"
	MetaSourceFile  = "source_file"
	MetaDescription = "description"
	MetaColumnCount = "column_count"
	MetaSyncedAt    = "synced_at"
	MetaEmbedder    = "embedder"
)

// Index is the vector index capability: one entry per table, keyed by table name
type Index interface {
	// Upsert embeds document and creates or replaces the entry for id
	Upsert(ctx context.Context, id, document string, metadata map[string]string) error

	// Delete removes the entry for id; deleting a missing id is not an error
	Delete(ctx context.Context, id string) error

	// Query returns up to k entries ranked by similarity to text, best first
	Query(ctx context.Context, text string, k int) ([]Match, error)

	// ListAll returns every entry's id and metadata ordered by id
	ListAll(ctx context.Context) ([]Entry, error)

	Close() error
}

// Inspector exposes read and maintenance operations used by the CLI
type Inspector interface {
	Get(ctx context.Context, id string) (*Entry, error)
	GetStats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
}

// SyncRecorder is implemented by backends that keep a history of sync passes
type SyncRecorder interface {
	RecordSync(ctx context.Context, run SyncRun) error
}

// Store is the full capability set every bundled backend provides
type Store interface {
	Index
	Inspector
	SyncRecorder
}

// Embedder turns text into a vector. embedding.Manager satisfies it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Entry is a stored index entry
type Entry struct {
	ID        string            `json:"id"`
	Document  string            `json:"document,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Match is a ranked query result
type Match struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// SyncRun summarizes one completed synchronization pass
type SyncRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Forced     bool      `json:"forced"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Removed    int       `json:"removed"`
	Failed     int       `json:"failed"`
}

// Stats represents index statistics
type Stats struct {
	Backend        string    `json:"backend"`
	Collection     string    `json:"collection"`
	TotalEntries   int       `json:"total_entries"`
	LastUpdated    time.Time `json:"last_updated"`
	LastRun        *SyncRun  `json:"last_run,omitempty"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}
