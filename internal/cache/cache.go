// Package cache stores raw upstream responses (entity JSON, ShExJ documents)
// in memory, on disk, or both.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/entityshape/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "entityshape:v1:"

// Key generates a cache key for a resource inside a namespace ("entity", "schema")
func Key(namespace, resource string) string {
	hash := sha256.Sum256([]byte(resource))
	return keyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg. A disabled cache is a Nop.
// An empty cfg.Dir keeps the cache in memory only.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Nop{}
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

// DefaultDir returns the per-user cache directory, or "" when it cannot be determined
func DefaultDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "entityshape")
}

// Nop is a cache that never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)                { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                      { return nil }
func (Nop) Clear() error                             { return nil }
