package cache

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

func TestBuildMetricsKey(t *testing.T) {
	assert.Equal(t, "metrics:report:42:abc", buildMetricsKey(42, "abc"))
	assert.Equal(t, "metrics:report:42:default", buildMetricsKey(42, ""))
	assert.False(t, strings.HasPrefix(buildMetricsKey(42, "x"), reportPrefix(4)))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestNewMetricsCache_Disabled(t *testing.T) {
	c, err := NewMetricsCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, 1, "fp", &metrics.MetricResult{TotalOrders: 3}))
	_, ok, err := c.Get(ctx, 1, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.InvalidateReport(ctx, 1))
	assert.NoError(t, c.InvalidateAll(ctx))
}

// TestRedisMetricsCache runs against a real server when TEST_REDIS_URL is set.
func TestRedisMetricsCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	c, err := NewMetricsCache(config.CacheConfig{Enabled: true, RedisURL: url, MetricsTTLSeconds: 30})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.InvalidateAll(ctx))

	res, err := metrics.ComputeMetrics([]domain.OrderLine{}, metrics.DefaultConfig())
	require.NoError(t, err)
	res.TotalOrders = 7

	require.NoError(t, c.Set(ctx, 9, "fp", &res))
	got, ok, err := c.Get(ctx, 9, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.TotalOrders)

	require.NoError(t, c.InvalidateReport(ctx, 9))
	_, ok, err = c.Get(ctx, 9, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}
