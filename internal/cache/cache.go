// Package cache tracks downloaded artifacts by video ID and media kind,
// with an age-based freshness window and on-disk re-verification.
package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ytgrab/pkg/models"
)

// Freshness is how long a cache entry may serve hits after creation
const Freshness = 20 * time.Minute

// Key identifies one cached artifact
type Key struct {
	VideoID string
	Kind    models.MediaKind
}

// Entry records a previously produced artifact
type Entry struct {
	Path      string
	CreatedAt time.Time
	Size      int64
	Strategy  string
}

// Cache is a process-wide map of download results. Entries are never
// mutated in place: a re-download after expiry overwrites the whole entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	dir     string
	logger  *slog.Logger
}

// New creates an empty cache over the given artifact directory
func New(dir string) *Cache {
	return &Cache{
		entries: make(map[Key]Entry),
		dir:     dir,
		logger:  slog.Default(),
	}
}

// Dir returns the artifact storage directory
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the entry for the key if it is still fresh and its file still
// exists on disk. A stale or dangling entry is reported as a miss but left
// in the map; the next successful download overwrites it.
func (c *Cache) Get(videoID string, kind models.MediaKind) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[Key{VideoID: videoID, Kind: kind}]
	c.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}
	if time.Since(entry.CreatedAt) >= Freshness {
		return Entry{}, false
	}
	if _, err := os.Stat(entry.Path); err != nil {
		return Entry{}, false
	}

	return entry, true
}

// Put records a freshly produced artifact, replacing any previous entry
func (c *Cache) Put(videoID string, kind models.MediaKind, path, strategy string, size int64) {
	c.mu.Lock()
	c.entries[Key{VideoID: videoID, Kind: kind}] = Entry{
		Path:      path,
		CreatedAt: time.Now(),
		Size:      size,
		Strategy:  strategy,
	}
	c.mu.Unlock()
}

// Len returns the number of entries in the map, fresh or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DiskSizeMB returns the total size of files in the artifact directory in
// megabytes
func (c *Cache) DiskSizeMB() float64 {
	var total int64

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("Failed to read cache directory", "dir", c.dir, "error", err)
		return 0
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}

	return float64(total) / 1024 / 1024
}

// ArtifactPath builds the deterministic on-disk name for a new artifact:
// {id}_{strategy-tag}_{unix-timestamp}.{ext}
func (c *Cache) ArtifactPath(videoID, tag, ext string) string {
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	return filepath.Join(c.dir, videoID+"_"+tag+"_"+stamp+"."+ext)
}
