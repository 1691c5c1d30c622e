package cache

import "time"

// LayeredCache fronts a DiskCache with a MemoryCache. Reads fall through to
// disk and promote hits into memory for at most the remaining disk lifetime.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
	hotTTL time.Duration
}

// NewLayeredCache keeps entries hot for memoryTTL and on disk for diskTTL
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
		hotTTL: memoryTTL,
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, ok := c.memory.Get(key); ok {
		return val, true
	}

	val, expires, ok := c.disk.GetWithExpiry(key)
	if !ok {
		return nil, false
	}
	ttl := time.Until(expires)
	if c.hotTTL > 0 && c.hotTTL < ttl {
		ttl = c.hotTTL
	}
	if ttl > 0 {
		_ = c.memory.Set(key, val, ttl)
	}
	return val, true
}

// Set writes through to both layers. The memory layer never holds an entry
// longer than its own TTL.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	hot := ttl
	if hot == 0 || (c.hotTTL > 0 && c.hotTTL < hot) {
		hot = c.hotTTL
	}
	if err := c.memory.Set(key, value, hot); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Disk exposes the persistent layer for maintenance commands
func (c *LayeredCache) Disk() *DiskCache {
	return c.disk
}
