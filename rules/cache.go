package rules

import "time"

// RulesCache caches an account's active rule definitions between engine
// rebuilds, so rule reloads do not hit the database on every evaluation
// request. Implementations must be safe for concurrent use.
type RulesCache interface {
	// Get retrieves cached rules, returns nil on cache miss or expiry.
	Get() []*Rule

	// Set stores rules in the cache.
	Set(rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on next Get.
	Invalidate()

	// IsValid reports whether the cache holds usable data.
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults for rule caching: no TTL, cache
// entries live until a rule mutation invalidates them.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
