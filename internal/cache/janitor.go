package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const (
	// sweepInterval is how often the disk janitor wakes up
	sweepInterval = 30 * time.Minute

	// maxArtifactAge is the modification-time horizon past which artifact
	// files are deleted. It is deliberately much longer than Freshness, so
	// the sweep only ever removes files already past cache validity.
	maxArtifactAge = 6 * time.Hour
)

// RunJanitor periodically deletes stale artifact files from the cache
// directory until the context is cancelled. Entries in the in-memory map
// are left alone; Get re-checks file existence on every lookup.
func (c *Cache) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Artifact janitor shutting down")
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep removes artifact files older than maxArtifactAge from the cache
// directory. Deletion races with the janitor on another key are benign:
// a missing file is just skipped.
func (c *Cache) Sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Error("Failed to read cache directory", "dir", c.dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-maxArtifactAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.Warn("Failed to remove stale artifact", "file", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.Info("Removed stale artifacts", "count", removed, "dir", c.dir)
	}
}
