package adapter

import (
	"context"
	"sync"
	"time"

	"rockmap-rules/internal/rules_translator/domain"
)

// MemoryCache is an in-memory RulesCache with TTL expiry and LRU eviction
type MemoryCache struct {
	cache  map[string]*CacheEntry
	mutex  sync.Mutex
	stats  domain.CacheStats
	config *CacheConfig
}

// CacheEntry is a cached translation
type CacheEntry struct {
	Data       *domain.TranslationResult
	ExpiresAt  time.Time
	LastAccess time.Time
}

// CacheConfig configures the cache
type CacheConfig struct {
	MaxSize    int           `json:"max_size"`
	DefaultTTL time.Duration `json:"default_ttl"`
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		MaxSize:    64,
		DefaultTTL: time.Hour,
	}
}

// NewMemoryCache creates a cache
func NewMemoryCache(config *CacheConfig) *MemoryCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	return &MemoryCache{
		cache:  make(map[string]*CacheEntry, config.MaxSize),
		config: config,
	}
}

var _ domain.RulesCache = (*MemoryCache)(nil)

// Get returns the cached translation for key, dropping it if expired
func (c *MemoryCache) Get(ctx context.Context, key *domain.CacheKey) (*domain.TranslationResult, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.stats.LastAccess = now

	entry, ok := c.cache[key.Hash]
	if ok && now.After(entry.ExpiresAt) {
		delete(c.cache, key.Hash)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = now
	c.stats.Hits++
	return entry.Data, true
}

// Set stores a translation, evicting the least recently used entry when full
func (c *MemoryCache) Set(ctx context.Context, key *domain.CacheKey, result *domain.TranslationResult) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.cache[key.Hash]; !exists && len(c.cache) >= c.config.MaxSize {
		c.evictLRU()
	}

	now := time.Now()
	c.cache[key.Hash] = &CacheEntry{
		Data:       result,
		ExpiresAt:  now.Add(c.config.DefaultTTL),
		LastAccess: now,
	}
}

// InvalidateAll empties the cache
func (c *MemoryCache) InvalidateAll(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[string]*CacheEntry, c.config.MaxSize)
}

// GetStats returns a snapshot of cache statistics
func (c *MemoryCache) GetStats() *domain.CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := c.stats
	stats.CacheSize = int64(len(c.cache))
	return &stats
}

func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.cache {
		if oldestKey == "" || entry.LastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccess
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
		c.stats.EvictionCount++
	}
}
