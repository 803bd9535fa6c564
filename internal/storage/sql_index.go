package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	_ "modernc.org/sqlite"             // SQLite driver

	apperrors "github.com/kyleking/schema-rag/internal/errors"
)

// Driver names accepted by OpenSQLIndex
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// SQLIndex implements Store on a database/sql connection. The same SQL runs
// on DuckDB and SQLite; vectors are stored as JSON and ranked in Go.
type SQLIndex struct {
	db         *sql.DB
	driver     string
	path       string
	collection string
	embedder   Embedder
}

// SQLOptions configures OpenSQLIndex
type SQLOptions struct {
	Driver         string
	Path           string
	Collection     string
	MaxConnections int
}

// OpenSQLIndex opens (creating if needed) the database file at opts.Path
func OpenSQLIndex(opts SQLOptions, embedder Embedder) (*SQLIndex, error) {
	if opts.Driver != DriverDuckDB && opts.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported SQL driver: %s", opts.Driver)
	}

	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(opts.Driver, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		maxConns = 4
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	if opts.Driver == DriverSQLite {
		maxConns = 1
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLIndexFromDB(db, opts.Driver, opts.Path, opts.Collection, embedder), nil
}

// NewSQLIndexFromDB wraps an existing connection. Call Initialize before use
// unless the schema already exists.
func NewSQLIndexFromDB(db *sql.DB, driver, path, collection string, embedder Embedder) *SQLIndex {
	if collection == "" {
		collection = "default"
	}

	return &SQLIndex{
		db:         db,
		driver:     driver,
		path:       path,
		collection: collection,
		embedder:   embedder,
	}
}

// Initialize creates the database schema using migrations
func (s *SQLIndex) Initialize(ctx context.Context) error {
	return NewMigrationManager(s.db).MigrateUp(ctx)
}

// Upsert embeds document and writes the entry in one statement
func (s *SQLIndex) Upsert(ctx context.Context, id, document string, metadata map[string]string) error {
	vector, err := s.embedder.GenerateEmbedding(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", id, err)
	}

	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	upsertSQL := `
	INSERT INTO schema_entries (collection, table_name, document, metadata, embedding, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (collection, table_name) DO UPDATE SET
		document = excluded.document,
		metadata = excluded.metadata,
		embedding = excluded.embedding,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, upsertSQL,
		s.collection,
		id,
		document,
		string(metadataJSON),
		string(vectorJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", id, err)
	}

	return nil
}

// Delete removes the entry for id
func (s *SQLIndex) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM schema_entries WHERE collection = ? AND table_name = ?",
		s.collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return nil
}

// Query ranks every entry in the collection by cosine similarity to text
func (s *SQLIndex) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	queryVector, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, document, metadata, embedding FROM schema_entries WHERE collection = ?",
		s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var candidates []candidate

	for rows.Next() {
		var (
			c                           candidate
			metadataJSON, embeddingJSON string
		)

		if err := rows.Scan(&c.id, &c.document, &metadataJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if c.metadata, err = decodeMetadata(metadataJSON); err != nil {
			return nil, fmt.Errorf("entry %s: %w", c.id, err)
		}

		if err := json.Unmarshal([]byte(embeddingJSON), &c.vector); err != nil {
			return nil, fmt.Errorf("entry %s: failed to decode embedding: %w", c.id, err)
		}

		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return rankCandidates(queryVector, candidates, k)
}

// ListAll returns every entry's id and metadata ordered by id
func (s *SQLIndex) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, metadata, updated_at FROM schema_entries WHERE collection = ? ORDER BY table_name",
		s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}

	for rows.Next() {
		var (
			entry                   Entry
			metadataJSON, updatedAt string
		)

		if err := rows.Scan(&entry.ID, &metadataJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if entry.Metadata, err = decodeMetadata(metadataJSON); err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
		}

		entry.UpdatedAt = parseTime(updatedAt)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Get retrieves a single entry including its document
func (s *SQLIndex) Get(ctx context.Context, id string) (*Entry, error) {
	var (
		entry                   = Entry{ID: id}
		metadataJSON, updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT document, metadata, updated_at FROM schema_entries WHERE collection = ? AND table_name = ?",
		s.collection, id).Scan(&entry.Document, &metadataJSON, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrTypeNotFound, "table %q is not indexed", id).
				WithSuggestion("Run 'schema-rag list' to see indexed tables")
		}

		return nil, fmt.Errorf("failed to get %s: %w", id, err)
	}

	if entry.Metadata, err = decodeMetadata(metadataJSON); err != nil {
		return nil, fmt.Errorf("entry %s: %w", id, err)
	}

	entry.UpdatedAt = parseTime(updatedAt)

	return &entry, nil
}

// GetStats returns index statistics
func (s *SQLIndex) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Backend: s.driver, Collection: s.collection}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_entries WHERE collection = ?", s.collection).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry count: %w", err)
	}

	var lastUpdated sql.NullString

	err = s.db.QueryRowContext(ctx,
		"SELECT MAX(updated_at) FROM schema_entries WHERE collection = ?", s.collection).Scan(&lastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last update time: %w", err)
	}

	if lastUpdated.Valid {
		stats.LastUpdated = parseTime(lastUpdated.String)
	}

	run, err := s.lastRun(ctx)
	if err != nil {
		return nil, err
	}

	stats.LastRun = run

	if info, err := os.Stat(s.path); err == nil {
		stats.DatabaseSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	return stats, nil
}

func (s *SQLIndex) lastRun(ctx context.Context) (*SyncRun, error) {
	var (
		run               SyncRun
		started, finished string
		forced            int
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, forced, new_count, updated_count, skipped_count, removed_count, failed_count
		FROM sync_runs WHERE collection = ?
		ORDER BY finished_at DESC LIMIT 1`, s.collection).Scan(
		&run.ID, &started, &finished, &forced,
		&run.New, &run.Updated, &run.Skipped, &run.Removed, &run.Failed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get last sync run: %w", err)
	}

	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.Forced = forced != 0

	return &run, nil
}

// RecordSync stores a completed sync pass
func (s *SQLIndex) RecordSync(ctx context.Context, run SyncRun) error {
	forced := 0
	if run.Forced {
		forced = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, collection, started_at, finished_at, forced,
			new_count, updated_count, skipped_count, removed_count, failed_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, s.collection, formatTime(run.StartedAt), formatTime(run.FinishedAt), forced,
		run.New, run.Updated, run.Skipped, run.Removed, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	return nil
}

// Clear removes every entry in the collection
func (s *SQLIndex) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM schema_entries WHERE collection = ?", s.collection)
	if err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLIndex) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func decodeMetadata(raw string) (map[string]string, error) {
	metadata := map[string]string{}
	if raw == "" {
		return metadata, nil
	}

	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	return metadata, nil
}

// Timestamps are stored as fixed-width UTC text so both drivers round-trip
// them identically and MAX() orders them correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
