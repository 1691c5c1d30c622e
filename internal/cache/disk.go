package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const diskSuffix = ".json"

// DiskCache stores one JSON file per key, sharded as
// {dir}/{namespace}/{hash[:2]}/{hash}.json. Entries carry their own expiry.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

type diskEntry struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Body      []byte    `json:"body"`
}

// Get returns a live entry; expired entries are removed on read
func (c *DiskCache) Get(key string) ([]byte, bool) {
	entry, ok := c.read(c.path(key))
	if !ok {
		return nil, false
	}
	return entry.Body, true
}

// GetWithExpiry is Get plus the entry's expiry time
func (c *DiskCache) GetWithExpiry(key string) ([]byte, time.Time, bool) {
	entry, ok := c.read(c.path(key))
	if !ok {
		return nil, time.Time{}, false
	}
	return entry.Body, entry.ExpiresAt, true
}

func (c *DiskCache) read(path string) (diskEntry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return diskEntry{}, false
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(path)
		return diskEntry{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return diskEntry{}, false
	}
	return entry, true
}

// Set writes the entry atomically; ttl 0 means the cache default
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	now := time.Now()
	data, err := json.Marshal(diskEntry{
		Key:       key,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Body:      value,
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// readers only ever see complete files
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Delete removes one entry. A missing key is not an error.
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Stats counts entries per namespace, including expired ones not yet pruned
func (c *DiskCache) Stats() (map[string]int, error) {
	counts := make(map[string]int)
	err := c.walk(func(path, namespace string) error {
		counts[namespace]++
		return nil
	})
	return counts, err
}

// Prune deletes expired and unreadable entries and reports how many were removed
func (c *DiskCache) Prune() (int, error) {
	removed := 0
	err := c.walk(func(path, _ string) error {
		if _, ok := c.read(path); !ok {
			removed++
		}
		return nil
	})
	return removed, err
}

func (c *DiskCache) walk(fn func(path, namespace string) error) error {
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, diskSuffix) {
			return nil
		}
		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		namespace, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		return fn(path, namespace)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// path maps "entityshape:v1:entity:ab12..." to {dir}/entity/ab/ab12....json.
// Keys not built by Key land in the "misc" namespace.
func (c *DiskCache) path(key string) string {
	namespace, name := "misc", key
	if rest, ok := strings.CutPrefix(key, keyPrefix); ok {
		if ns, hash, found := strings.Cut(rest, ":"); found {
			namespace, name = ns, hash
		}
	}
	name = strings.Map(func(r rune) rune {
		if r == ':' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)

	shard := name
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(c.dir, namespace, shard, name+diskSuffix)
}
