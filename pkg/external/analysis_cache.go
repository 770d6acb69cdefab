package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const cacheKeyPrefix = "analysis:"

// AnalysisCache stores raw model output keyed by a digest of the image and the
// patient context. Tier 1 is an in-process expirable LRU, tier 2 is Redis.
type AnalysisCache struct {
	memory     *expirable.LRU[string, string]
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
	stats      cacheCounters
}

type cacheCounters struct {
	memoryHits atomic.Int64
	redisHits  atomic.Int64
	misses     atomic.Int64
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits int64 `json:"memory_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Misses     int64 `json:"misses"`
}

// CachedAnalysis is the Redis envelope for a cached model response.
type CachedAnalysis struct {
	Raw       string    `json:"raw"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAnalysisCache creates the cache. Redis is only used when a URL is configured.
func NewAnalysisCache(config domain.CacheConfig, logger *logrus.Logger) (*AnalysisCache, error) {
	size := config.MemorySize
	if size <= 0 {
		size = 256
	}
	memoryTTL := config.MemoryTTL
	if memoryTTL == 0 {
		memoryTTL = 15 * time.Minute
	}

	c := &AnalysisCache{
		memory:     expirable.NewLRU[string, string](size, nil, memoryTTL),
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}
	if c.defaultTTL == 0 {
		c.defaultTTL = 24 * time.Hour
	}

	if config.RedisURL == "" {
		return c, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.redis = client
	return c, nil
}

// Key derives the cache key for one request.
func (c *AnalysisCache) Key(image []byte, mimeType string, patient domain.PatientContext) string {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte(mimeType))
	ctxJSON, _ := json.Marshal(patient)
	h.Write(ctxJSON)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get looks the key up in memory, then in Redis.
func (c *AnalysisCache) Get(ctx context.Context, key string) (string, bool) {
	if raw, ok := c.memory.Get(key); ok {
		c.stats.memoryHits.Add(1)
		return raw, true
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			c.logger.WithError(err).Warn("Failed to read analysis cache")
		default:
			var cached CachedAnalysis
			if err := json.Unmarshal([]byte(val), &cached); err != nil || time.Now().After(cached.ExpiresAt) {
				c.redis.Del(ctx, key)
				break
			}
			c.stats.redisHits.Add(1)
			c.memory.Add(key, cached.Raw)
			return cached.Raw, true
		}
	}

	c.stats.misses.Add(1)
	return "", false
}

// Set stores the raw model output in both tiers.
func (c *AnalysisCache) Set(ctx context.Context, key, raw string) {
	c.memory.Add(key, raw)

	if c.redis == nil {
		return
	}

	now := time.Now()
	data, err := json.Marshal(CachedAnalysis{Raw: raw, CachedAt: now, ExpiresAt: now.Add(c.defaultTTL)})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.defaultTTL).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to write analysis cache")
	}
}

// Stats returns hit and miss counters.
func (c *AnalysisCache) Stats() CacheStats {
	return CacheStats{
		MemoryHits: c.stats.memoryHits.Load(),
		RedisHits:  c.stats.redisHits.Load(),
		Misses:     c.stats.misses.Load(),
	}
}

// Ping checks the Redis tier, if any.
func (c *AnalysisCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *AnalysisCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// CachedAnalyzer serves repeated identical submissions from the cache and only
// stores successful model responses.
type CachedAnalyzer struct {
	next  domain.ImageAnalyzer
	cache *AnalysisCache
}

// NewCachedAnalyzer wraps an analyzer with the cache.
func NewCachedAnalyzer(next domain.ImageAnalyzer, cache *AnalysisCache) *CachedAnalyzer {
	return &CachedAnalyzer{next: next, cache: cache}
}

// AnalyzeImage implements domain.ImageAnalyzer.
func (a *CachedAnalyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string, patient domain.PatientContext) (string, error) {
	key := a.cache.Key(image, mimeType, patient)
	if raw, ok := a.cache.Get(ctx, key); ok {
		return raw, nil
	}

	raw, err := a.next.AnalyzeImage(ctx, image, mimeType, patient)
	if err != nil {
		return "", err
	}

	a.cache.Set(ctx, key, raw)
	return raw, nil
}
