package ability

import "testing"

func TestRulesetCacheRoundtrip(t *testing.T) {
	cache, err := NewRulesetCache(RulesetCacheConfig{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	reqCtx := orgContext("H1")
	rs := NewRuleset(Rule{Action: ActionRead, Subject: SubjectPatient})

	cache.Set("u-1", reqCtx, rs)
	cache.Wait()

	got, ok := cache.Get("u-1", reqCtx)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Len() != 1 {
		t.Fatalf("cached ruleset corrupted: %d rules", got.Len())
	}
}

func TestRulesetCacheContextIsolation(t *testing.T) {
	cache, err := NewRulesetCache(RulesetCacheConfig{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	cache.Set("u-1", orgContext("H1"), PublicRuleset())
	cache.Wait()

	if _, ok := cache.Get("u-1", orgContext("H2")); ok {
		t.Fatalf("different context must not share a cache entry")
	}
	if _, ok := cache.Get("u-2", orgContext("H1")); ok {
		t.Fatalf("different user must not share a cache entry")
	}
}

func TestRulesetCacheInvalidate(t *testing.T) {
	cache, err := NewRulesetCache(RulesetCacheConfig{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	reqCtx := orgContext("H1")
	cache.Set("u-1", reqCtx, PublicRuleset())
	cache.Set("u-2", reqCtx, PublicRuleset())
	cache.Wait()

	cache.Invalidate("u-1")
	if _, ok := cache.Get("u-1", reqCtx); ok {
		t.Fatalf("invalidated user must miss")
	}
	if _, ok := cache.Get("u-2", reqCtx); !ok {
		t.Fatalf("invalidation must be scoped to one user")
	}
}

func TestRulesetCacheClear(t *testing.T) {
	cache, err := NewRulesetCache(RulesetCacheConfig{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	reqCtx := orgContext("H1")
	cache.Set("u-1", reqCtx, PublicRuleset())
	cache.Wait()
	cache.Clear()
	if _, ok := cache.Get("u-1", reqCtx); ok {
		t.Fatalf("cleared cache must miss")
	}
}
