// Package cache implements the query result cache (spec.md §4.5,
// component C14): a fingerprint-keyed, per-entry-TTL store with hit/miss
// counters and wildcard invalidation. It generalizes the reference
// system's internal/cache.CacheService/RedisClient pair — same
// enabled-bool degrade-on-Ping-failure pattern, same MD5 fingerprint
// hashing — from caching LLM responses to caching ranked SearchResult
// sets, and adds the in-process fallback store the reference system's
// "caching disabled" branch left as a dead end.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// Fingerprint builds the deterministic cache key spec.md §4.5 specifies:
// hash(agent_type || normalised_query || canonical(options subset)), where
// the options subset is the fields that affect results.
func Fingerprint(agentType models.AgentType, query string, opts models.SearchOptions) string {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))

	filterKeys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	var filterPart strings.Builder
	for _, k := range filterKeys {
		filterPart.WriteString(k)
		filterPart.WriteString("=")
		filterPart.WriteString(opts.Filters[k])
		filterPart.WriteString(";")
	}

	subset := struct {
		MaxResults        int
		MinRelevanceScore float64
		Filters           string
	}{opts.MaxResults, opts.MinRelevanceScore, filterPart.String()}
	canonical, _ := json.Marshal(subset)

	raw := string(agentType) + "\x1f" + normalizedQuery + "\x1f" + string(canonical)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Stats reports the cache's hit/miss counters (spec.md §4.5).
type Stats struct {
	Hits     int64
	Misses   int64
	HitRatio float64
}

// Store is the query result cache surface every retrieval agent and the
// orchestrator depend on.
type Store interface {
	Get(ctx context.Context, key string) ([]models.SearchResult, bool)
	Set(ctx context.Context, key string, results []models.SearchResult, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string) int
	Stats() Stats
}

// Cache is a Redis-backed Store that degrades to an in-process fallback
// when Redis is unreachable, mirroring the reference CacheService's
// enabled-bool pattern.
type Cache struct {
	redisClient *redis.Client
	enabled     bool
	defaultTTL  time.Duration
	logger      *logrus.Logger

	fallback *memoryStore

	mu     sync.Mutex
	hits   int64
	misses int64
}

// New constructs a Cache. If redisAddr is empty or Redis is unreachable
// within a fixed 5-second ping timeout, the cache silently falls back to an
// in-process store rather than failing startup.
func New(redisAddr, password string, db int, defaultTTL time.Duration, logger *logrus.Logger) *Cache {
	c := &Cache{defaultTTL: defaultTTL, logger: logger, fallback: newMemoryStore()}

	if redisAddr == "" {
		logger.Info("cache: no redis address configured, using in-process store")
		return c
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("cache: redis ping failed, falling back to in-process store")
		return c
	}

	c.redisClient = client
	c.enabled = true
	return c
}

// Get returns the cached results for key, or (nil, false) on a miss or an
// expired entry (which behaves as absent, per spec.md §4.5).
func (c *Cache) Get(ctx context.Context, key string) ([]models.SearchResult, bool) {
	if !c.enabled {
		results, ok := c.fallback.get(key)
		c.record(ok)
		return results, ok
	}

	data, err := c.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		c.record(false)
		return nil, false
	}
	var results []models.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.record(false)
		return nil, false
	}
	c.record(true)
	return results, true
}

// Set stores results under key with ttl (or the default TTL if ttl <= 0).
func (c *Cache) Set(ctx context.Context, key string, results []models.SearchResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if !c.enabled {
		c.fallback.set(key, results, ttl)
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		c.logger.WithError(err).Warn("cache: failed to marshal results, skipping cache write")
		return
	}
	if err := c.redisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("cache: redis set failed")
	}
}

// Invalidate removes entries matching pattern ("*" clears everything) and
// returns the number of keys removed.
func (c *Cache) Invalidate(ctx context.Context, pattern string) int {
	if !c.enabled {
		return c.fallback.invalidate(pattern)
	}

	var matchPattern string
	if pattern == "*" {
		matchPattern = "*"
	} else {
		matchPattern = pattern
	}

	var removed int
	iter := c.redisClient.Scan(ctx, 0, matchPattern, 0).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		if n, err := c.redisClient.Del(ctx, keys...).Result(); err == nil {
			removed = int(n)
		}
	}
	return removed
}

// Stats reports the cache's hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, HitRatio: ratio}
}

func (c *Cache) record(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
