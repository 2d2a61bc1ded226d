package assetstore

import (
	"sync"

	"sodareplay/internal/assetref"
	"sodareplay/internal/fileutil"
)

// Cache decides whether an asset is already present and persists new bytes.
type Cache interface {
	// Has reports whether key is already materialized at dest.
	Has(key assetref.Key, dest string) bool
	// Put stores data for key at dest.
	Put(key assetref.Key, dest string, data []byte) error
	// Get returns any location where key is known to be materialized.
	Get(key assetref.Key) (string, bool)
}

// FileCache treats an existing file as a cache hit and writes atomically.
type FileCache struct {
	mu    sync.RWMutex
	paths map[assetref.Key]string
}

// NewFileCache returns an empty filesystem cache.
func NewFileCache() *FileCache {
	return &FileCache{paths: make(map[assetref.Key]string)}
}

func (c *FileCache) Has(key assetref.Key, dest string) bool {
	if !fileutil.Exists(dest) {
		return false
	}
	c.remember(key, dest)
	return true
}

func (c *FileCache) Put(key assetref.Key, dest string, data []byte) error {
	if err := fileutil.WriteAtomic(dest, data, 0o644); err != nil {
		return err
	}
	c.remember(key, dest)
	return nil
}

func (c *FileCache) Get(key assetref.Key) (string, bool) {
	c.mu.RLock()
	path, ok := c.paths[key]
	c.mu.RUnlock()
	if !ok || !fileutil.Exists(path) {
		return "", false
	}
	return path, true
}

func (c *FileCache) remember(key assetref.Key, dest string) {
	c.mu.Lock()
	if _, ok := c.paths[key]; !ok {
		c.paths[key] = dest
	}
	c.mu.Unlock()
}
