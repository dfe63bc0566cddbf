package ability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// RulesetCache memoizes built rulesets per (user, context) pair. Conditions
// are resolved against the context at build time, so a cached ruleset is
// keyed by a fingerprint of the whole context and is never reused across
// different context values. Invalidation on grant/role change works through
// per-user generation counters: bumping the generation orphans every cached
// entry for that user without scanning the cache.
type RulesetCache struct {
	cache       *ristretto.Cache
	ttl         time.Duration
	generations sync.Map // userID -> *uint64
}

// RulesetCacheConfig carries ristretto sizing plus the entry TTL. Zero
// values fall back to defaults suitable for a single service instance.
type RulesetCacheConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

func NewRulesetCache(cfg RulesetCacheConfig) (*RulesetCache, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 1e5
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 1e4
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RulesetCache{cache: inner, ttl: cfg.TTL}, nil
}

// Get returns the cached ruleset for the user under exactly this context.
func (c *RulesetCache) Get(userID string, reqCtx Context) (Ruleset, bool) {
	v, ok := c.cache.Get(c.key(userID, reqCtx))
	if !ok {
		return Ruleset{}, false
	}
	rs, ok := v.(Ruleset)
	return rs, ok
}

// Set stores a freshly built ruleset. Each entry costs one unit; rulesets are
// small and uniform enough that entry count is the real budget.
func (c *RulesetCache) Set(userID string, reqCtx Context, rs Ruleset) {
	c.cache.SetWithTTL(c.key(userID, reqCtx), rs, 1, c.ttl)
}

// Invalidate drops every cached ruleset for the user by advancing the user's
// generation. Entries under the old generation expire by TTL.
func (c *RulesetCache) Invalidate(userID string) {
	atomic.AddUint64(c.generation(userID), 1)
}

// Clear drops everything, generations included.
func (c *RulesetCache) Clear() {
	c.cache.Clear()
	c.generations.Range(func(k, _ any) bool {
		c.generations.Delete(k)
		return true
	})
}

// Wait blocks until pending writes are visible. Ristretto applies sets
// asynchronously; tests and benchmarks need this barrier.
func (c *RulesetCache) Wait() { c.cache.Wait() }

func (c *RulesetCache) generation(userID string) *uint64 {
	if g, ok := c.generations.Load(userID); ok {
		return g.(*uint64)
	}
	g, _ := c.generations.LoadOrStore(userID, new(uint64))
	return g.(*uint64)
}

func (c *RulesetCache) key(userID string, reqCtx Context) string {
	gen := atomic.LoadUint64(c.generation(userID))
	return userID + ":" + strconv.FormatUint(gen, 10) + ":" + fingerprint(reqCtx)
}

// fingerprint hashes the canonical JSON encoding of the context. Map keys are
// sorted by encoding/json, so equal contexts always collide and different
// contexts (request-scoped attributes included) never share an entry.
func fingerprint(reqCtx Context) string {
	data, err := json.Marshal(reqCtx)
	if err != nil {
		// Unencodable context values make the entry uncacheable; a unique
		// key per call keeps correctness over hit rate.
		data = []byte(strconv.FormatInt(time.Now().UnixNano(), 36))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
