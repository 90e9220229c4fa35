package rules

import (
	"testing"
	"time"
)

var _ RulesCache = (*InMemoryRulesCache)(nil)

func TestInMemoryRulesCacheMissUntilSet(t *testing.T) {
	cache := NewInMemoryRulesCache(DefaultCacheConfig())

	if cache.IsValid() {
		t.Error("expected fresh cache to be invalid")
	}
	if got := cache.Get(); got != nil {
		t.Errorf("expected nil on cache miss, got %v", got)
	}

	cache.Set([]*Rule{{ID: "r1", Name: "cached"}})

	if !cache.IsValid() {
		t.Error("expected cache to be valid after Set")
	}
	got := cache.Get()
	if len(got) != 1 || got[0].Name != "cached" {
		t.Errorf("expected the cached rule back, got %v", got)
	}
}

func TestInMemoryRulesCacheInvalidate(t *testing.T) {
	cache := NewInMemoryRulesCache(DefaultCacheConfig())
	cache.Set([]*Rule{{ID: "r1"}})

	cache.Invalidate()

	if cache.IsValid() {
		t.Error("expected cache to be invalid after Invalidate")
	}
	if got := cache.Get(); got != nil {
		t.Errorf("expected nil after invalidation, got %v", got)
	}
}

func TestInMemoryRulesCacheTTLExpiry(t *testing.T) {
	cache := NewInMemoryRulesCache(CacheConfig{TTL: time.Millisecond})
	cache.Set([]*Rule{{ID: "r1"}})

	time.Sleep(5 * time.Millisecond)

	if cache.IsValid() {
		t.Error("expected cache to expire after TTL")
	}
	if got := cache.Get(); got != nil {
		t.Errorf("expected nil after expiry, got %v", got)
	}
}

func TestInMemoryRulesCacheReturnsCopies(t *testing.T) {
	cache := NewInMemoryRulesCache(DefaultCacheConfig())
	cache.Set([]*Rule{{ID: "r1"}})

	first := cache.Get()
	first[0] = nil

	second := cache.Get()
	if second[0] == nil {
		t.Error("expected Get to return a copy of the cached slice")
	}
}
