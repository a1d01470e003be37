// Package cache is a TTL cache for aggregator reference data, backed
// by a JSON file so the chain and token lists survive restarts.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SchemaVersion namespaces the cache file. Bump it whenever the token
// sanitation rules change so previously cached views are discarded.
const SchemaVersion = 3

// DefaultTTL applies to entries stored without an explicit TTL.
const DefaultTTL = 5 * time.Minute

var log = logrus.WithField("pkg", "cache")

type entry struct {
	Data     json.RawMessage `json:"data"`
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
}

type fileFormat struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Cache is an explicitly constructed, injectable TTL cache. A nil
// *Cache is valid and caches nothing.
type Cache struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// New loads or creates a cache file under dir. A stored file with a
// different schema version is discarded wholesale.
func New(dir string) (*Cache, error) {
	c := &Cache{
		path:    filepath.Join(dir, fmt.Sprintf("cache-v%d.json", SchemaVersion)),
		now:     time.Now,
		entries: make(map[string]entry),
	}
	if err := c.load(); err != nil && !os.IsNotExist(err) {
		// A corrupt cache file is recoverable: start empty.
		log.WithError(err).Warn("discarding unreadable cache file")
	}
	return c, nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	if ff.Version != SchemaVersion {
		return fmt.Errorf("cache schema version %d, want %d", ff.Version, SchemaVersion)
	}
	if ff.Entries != nil {
		c.entries = ff.Entries
	}
	return nil
}

func (c *Cache) save() {
	c.mu.RLock()
	ff := fileFormat{Version: SchemaVersion, Entries: c.entries}
	data, err := json.MarshalIndent(ff, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		log.WithError(err).Warn("cache marshal failed")
		return
	}

	// Storage failures (quota, permissions) are recoverable: the cache
	// keeps working in memory.
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		log.WithError(err).Warn("cache dir create failed")
		return
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		log.WithError(err).Warn("cache write failed")
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		log.WithError(err).Warn("cache rename failed")
	}
}

// Get unmarshals a live entry into dest, reporting whether one existed.
func (c *Cache) Get(key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	ttl := e.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if c.now().Sub(e.StoredAt) > ttl {
		return false
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache entry unreadable")
		return false
	}
	return true
}

// Put stores a value under key with the given TTL and persists the
// cache to disk.
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("cache value marshal failed")
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{Data: data, StoredAt: c.now(), TTL: ttl}
	c.mu.Unlock()
	c.save()
}

// Invalidate drops an entry.
func (c *Cache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.save()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	c.save()
}
