package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired
var ErrMiss = errors.New("cache miss")

const entrySuffix = ".json"

// Cache defines the interface for local file caching operations
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Cleanup(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
}

// Entry is one cached value with its expiry
type Entry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats represents cache statistics
type Stats struct {
	TotalEntries int64   `json:"total_entries"`
	TotalSize    int64   `json:"total_size"`
	HitRate      float64 `json:"hit_rate"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}

// FileCache stores one JSON file per key under a directory. When the total
// size would exceed the limit, the oldest files are evicted first.
type FileCache struct {
	directory  string
	maxBytes   int64
	defaultTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewFileCache creates the directory if needed and drops expired entries
func NewFileCache(directory string, maxSizeMB int, defaultTTL time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &FileCache{
		directory:  directory,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}

	if err := c.Cleanup(context.Background()); err != nil {
		return nil, err
	}

	return c, nil
}

// Get returns the cached data for key, or ErrMiss
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.read(c.path(key))
	if err != nil || entry.Key != key {
		c.stats.Misses++
		return nil, ErrMiss
	}

	if c.now().After(entry.ExpiresAt) {
		c.stats.Misses++
		_ = os.Remove(c.path(key))

		return nil, ErrMiss
	}

	c.stats.Hits++

	return entry.Data, nil
}

// Set stores data under key. A zero ttl uses the cache default.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := c.now()

	encoded, err := json.Marshal(Entry{Key: key, Data: data, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enforceSize(int64(len(encoded))); err != nil {
		return fmt.Errorf("failed to enforce cache size: %w", err)
	}

	// write then rename so readers never see a partial entry
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if err := os.Rename(tmp, c.path(key)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

// Delete removes an entry; a missing key is not an error
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Clear removes all entries and resets the statistics
func (c *FileCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.files()
	if err != nil {
		return err
	}

	for _, f := range files {
		_ = os.Remove(f.path)
	}

	c.stats = Stats{}

	return nil
}

// Cleanup removes expired and unreadable entries
func (c *FileCache) Cleanup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.files()
	if err != nil {
		return err
	}

	now := c.now()

	for _, f := range files {
		entry, err := c.read(f.path)
		if err != nil || now.After(entry.ExpiresAt) {
			_ = os.Remove(f.path)
		}
	}

	return nil
}

// GetStats returns entry counts, size and hit rate
func (c *FileCache) GetStats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.files()
	if err != nil {
		return nil, err
	}

	stats := c.stats
	stats.TotalEntries = int64(len(files))

	for _, f := range files {
		stats.TotalSize += f.size
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return &stats, nil
}

// path returns a filesystem-safe location for key
func (c *FileCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.directory, hex.EncodeToString(sum[:16])+entrySuffix)
}

func (c *FileCache) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (c *FileCache) files() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	files := make([]cacheFile, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), entrySuffix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		files = append(files, cacheFile{
			path:    filepath.Join(c.directory, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}

	return files, nil
}

// enforceSize evicts the oldest entries until incoming fits. Callers hold mu.
func (c *FileCache) enforceSize(incoming int64) error {
	if c.maxBytes <= 0 {
		return nil
	}

	files, err := c.files()
	if err != nil {
		return err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}

	if total+incoming <= c.maxBytes {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for _, f := range files {
		if total+incoming <= c.maxBytes {
			break
		}

		if err := os.Remove(f.path); err == nil {
			total -= f.size
		}
	}

	return nil
}
