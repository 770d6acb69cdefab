package external

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

type stubAnalyzer struct {
	calls int
	raw   string
	err   error
}

func (s *stubAnalyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string, patient domain.PatientContext) (string, error) {
	s.calls++
	return s.raw, s.err
}

func TestAnalysisCache_Key(t *testing.T) {
	cache, err := NewAnalysisCache(domain.CacheConfig{MemorySize: 8}, testLogger())
	require.NoError(t, err)

	p := testPatient()
	k1 := cache.Key([]byte("img"), "image/jpeg", p)
	k2 := cache.Key([]byte("img"), "image/jpeg", p)
	assert.Equal(t, k1, k2)

	p.Fever = "high"
	assert.NotEqual(t, k1, cache.Key([]byte("img"), "image/jpeg", p))
	assert.NotEqual(t, k1, cache.Key([]byte("img2"), "image/jpeg", testPatient()))
}

func TestAnalysisCache_MemoryOnly(t *testing.T) {
	cache, err := NewAnalysisCache(domain.CacheConfig{MemorySize: 8, MemoryTTL: time.Minute}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "analysis:missing")
	assert.False(t, ok)

	cache.Set(ctx, "analysis:k", "raw output")
	raw, ok := cache.Get(ctx, "analysis:k")
	assert.True(t, ok)
	assert.Equal(t, "raw output", raw)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.NoError(t, cache.Ping(ctx))
	assert.NoError(t, cache.Close())
}

func TestAnalysisCache_RedisTier(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := domain.CacheConfig{RedisURL: "redis://" + mr.Addr(), MemorySize: 8, DefaultTTL: time.Hour}
	writer, err := NewAnalysisCache(cfg, testLogger())
	require.NoError(t, err)
	defer writer.Close()

	ctx := context.Background()
	writer.Set(ctx, "analysis:shared", `{"primaryCondition":"Scabies"}`)

	stored, err := mr.Get("analysis:shared")
	require.NoError(t, err)
	var envelope CachedAnalysis
	require.NoError(t, json.Unmarshal([]byte(stored), &envelope))
	assert.Equal(t, `{"primaryCondition":"Scabies"}`, envelope.Raw)

	// A second process only shares the Redis tier.
	reader, err := NewAnalysisCache(cfg, testLogger())
	require.NoError(t, err)
	defer reader.Close()

	raw, ok := reader.Get(ctx, "analysis:shared")
	assert.True(t, ok)
	assert.Equal(t, `{"primaryCondition":"Scabies"}`, raw)
	assert.Equal(t, int64(1), reader.Stats().RedisHits)

	// Promoted into memory on the redis hit.
	_, ok = reader.Get(ctx, "analysis:shared")
	assert.True(t, ok)
	assert.Equal(t, int64(1), reader.Stats().MemoryHits)
}

func TestAnalysisCache_CorruptRedisEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("analysis:bad", "not json"))

	cache, err := NewAnalysisCache(domain.CacheConfig{RedisURL: "redis://" + mr.Addr()}, testLogger())
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get(context.Background(), "analysis:bad")
	assert.False(t, ok)
	assert.False(t, mr.Exists("analysis:bad"))
}

func TestNewAnalysisCache_BadRedisURL(t *testing.T) {
	_, err := NewAnalysisCache(domain.CacheConfig{RedisURL: "://nope"}, testLogger())
	assert.Error(t, err)
}

func TestCachedAnalyzer(t *testing.T) {
	cache, err := NewAnalysisCache(domain.CacheConfig{MemorySize: 8}, testLogger())
	require.NoError(t, err)

	inner := &stubAnalyzer{raw: "model text"}
	analyzer := NewCachedAnalyzer(inner, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := analyzer.AnalyzeImage(ctx, []byte("img"), "image/jpeg", testPatient())
		require.NoError(t, err)
		assert.Equal(t, "model text", raw)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedAnalyzer_DoesNotCacheFailures(t *testing.T) {
	cache, err := NewAnalysisCache(domain.CacheConfig{MemorySize: 8}, testLogger())
	require.NoError(t, err)

	inner := &stubAnalyzer{err: errors.New("down")}
	analyzer := NewCachedAnalyzer(inner, cache)
	ctx := context.Background()

	_, err = analyzer.AnalyzeImage(ctx, []byte("img"), "image/jpeg", testPatient())
	assert.Error(t, err)
	_, err = analyzer.AnalyzeImage(ctx, []byte("img"), "image/jpeg", testPatient())
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
