package vaillant

import (
	"sync"
	"time"
)

// Cache defines an interface for caching API responses.
// Implementations must be safe for concurrent access.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns the value and true if found and not expired, or nil and false otherwise.
	Get(key string) (any, bool)

	// Set stores a value in the cache with the given TTL.
	// If TTL is 0 or negative, the entry never expires.
	Set(key string, value any, ttl time.Duration)

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()
}

// cacheEntry holds a cached value with its expiration time.
type cacheEntry struct {
	value     any
	expiresAt time.Time
	noExpiry  bool
}

// MemoryCache is a thread-safe in-memory cache implementation.
type MemoryCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !entry.noExpiry && time.Now().After(entry.expiresAt) {
		// Entry expired, remove it
		c.Delete(key)
		return nil, false
	}

	return entry.value, true
}

// Set stores a value in the cache with the given TTL.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	entry := &cacheEntry{
		value: value,
	}

	if ttl <= 0 {
		entry.noExpiry = true
	} else {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all values from the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Size returns the number of entries in the cache (including expired ones).
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheConfig configures response caching for a thermostat client. Only
// read endpoints are cached; every write invalidates the affected snapshot
// so callers never observe their own change as stale.
type CacheConfig struct {
	// Cache is the cache implementation to use.
	Cache Cache

	// ThermostatDataTTL is how long to cache thermostat data snapshots.
	// Defaults to 1 minute if zero.
	ThermostatDataTTL time.Duration

	// HomesDataTTL is how long to cache homes data snapshots.
	// Defaults to 5 minutes if zero.
	HomesDataTTL time.Duration
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Cache:             NewMemoryCache(),
		ThermostatDataTTL: 1 * time.Minute,
		HomesDataTTL:      5 * time.Minute,
	}
}

// WithCache enables response caching for the client.
//
// Example:
//
//	client, _ := vaillant.NewThermostatClient(store,
//	    vaillant.WithCache(vaillant.DefaultCacheConfig()),
//	)
func WithCache(config *CacheConfig) Option {
	return func(c *Client) {
		if config == nil {
			config = DefaultCacheConfig()
		}
		if config.Cache == nil {
			config.Cache = NewMemoryCache()
		}
		if config.ThermostatDataTTL == 0 {
			config.ThermostatDataTTL = 1 * time.Minute
		}
		if config.HomesDataTTL == 0 {
			config.HomesDataTTL = 5 * time.Minute
		}
		c.cacheConfig = config
	}
}

// getCached retrieves a value from cache or executes the fetch function and
// caches the result.
func (c *Client) getCached(key string, ttl time.Duration, fetch func() (any, error)) (any, error) {
	if c.cacheConfig == nil || c.cacheConfig.Cache == nil {
		return fetch()
	}

	if cached, ok := c.cacheConfig.Cache.Get(key); ok {
		return cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}

	c.cacheConfig.Cache.Set(key, result, ttl)
	return result, nil
}

// invalidateCache removes a cached snapshot after a write.
func (c *Client) invalidateCache(key string) {
	if c.cacheConfig != nil && c.cacheConfig.Cache != nil {
		c.cacheConfig.Cache.Delete(key)
	}
}
