// Package cache stores per-file token tallies so unchanged files are not
// classified again.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/c3ms/pkg/codestats"
	"github.com/zeebo/blake3"
)

// Cache provides file-based caching of classification results.
// A nil *Cache behaves like a disabled one.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is the on-disk envelope of a cached record.
type Entry struct {
	Hash      string          `json:"hash"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FileRecord holds the tallies of one file. In function mode Functions lists
// the tallies of every extracted unit and Stats is their fold.
type FileRecord struct {
	Lines     int                   `json:"lines"`
	Stats     *codestats.Statistics `json:"stats"`
	Functions []FunctionRecord      `json:"functions,omitempty"`
}

// FunctionRecord holds the tallies of one extracted function.
type FunctionRecord struct {
	Name      string                `json:"name"`
	StartLine   uint32                `json:"start_line"`
	StartColumn uint32                `json:"start_column"`
	EndLine     uint32                `json:"end_line"`
	Lines       int                   `json:"lines"`
	Stats       *codestats.Statistics `json:"stats"`
}

// New creates a new cache instance.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether lookups can hit.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Key identifies a file analyzed under a given catalog and mode. Changing
// the catalog or switching function mode yields a different key.
func Key(path string, catalogFingerprint uint64, functionMode bool) string {
	mode := "file"
	if functionMode {
		mode = "function"
	}
	return fmt.Sprintf("%s|%016x|%s", filepath.Clean(path), catalogFingerprint, mode)
}

// Load returns the record stored under key if its content hash matches and
// it has not expired.
func (c *Cache) Load(key, hash string) (*FileRecord, bool) {
	if !c.Enabled() {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Hash != hash {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		_ = os.Remove(path)
		return nil, false
	}

	var rec FileRecord
	if err := json.Unmarshal(entry.Data, &rec); err != nil || rec.Stats == nil {
		// Corrupt or inconsistent tallies are treated as a miss.
		return nil, false
	}
	return &rec, true
}

// Store writes rec under key. The write goes through a temporary file so
// concurrent readers never observe a partial entry.
func (c *Cache) Store(key, hash string, rec *FileRecord) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	entryData, err := json.Marshal(Entry{Hash: hash, Timestamp: time.Now(), Data: data})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entryData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.keyPath(key))
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.Enabled() {
		return nil
	}
	return os.Remove(c.keyPath(key))
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath maps a key to a fixed-length file name.
func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%016x.json", xxhash.Sum64String(key)))
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
