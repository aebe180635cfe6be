// Package cache keeps computed report metrics in redis so dashboards do not
// recompute a report on every request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

const metricsKeyPrefix = "metrics:report"

// MetricsCache stores metric results per report and config fingerprint.
type MetricsCache interface {
	Get(ctx context.Context, reportID int64, fingerprint string) (*metrics.MetricResult, bool, error)
	Set(ctx context.Context, reportID int64, fingerprint string, result *metrics.MetricResult) error
	InvalidateReport(ctx context.Context, reportID int64) error
	InvalidateAll(ctx context.Context) error
}

type redisMetricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopMetricsCache struct{}

// NewMetricsCache connects to redis when caching is enabled and falls back
// to a cache that never hits otherwise.
func NewMetricsCache(cfg config.CacheConfig) (MetricsCache, error) {
	if !cfg.Enabled {
		return &noopMetricsCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisMetricsCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopMetricsCache() MetricsCache {
	return &noopMetricsCache{}
}

func reportPrefix(reportID int64) string {
	return fmt.Sprintf("%s:%d:", metricsKeyPrefix, reportID)
}

func buildMetricsKey(reportID int64, fingerprint string) string {
	if fingerprint == "" {
		fingerprint = "default"
	}
	return reportPrefix(reportID) + fingerprint
}

func (c *redisMetricsCache) Get(ctx context.Context, reportID int64, fingerprint string) (*metrics.MetricResult, bool, error) {
	payload, err := c.client.Get(ctx, buildMetricsKey(reportID, fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result metrics.MetricResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode metrics cache: %w", err)
	}

	return &result, true, nil
}

func (c *redisMetricsCache) Set(ctx context.Context, reportID int64, fingerprint string, result *metrics.MetricResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode metrics cache: %w", err)
	}

	if err := c.client.Set(ctx, buildMetricsKey(reportID, fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisMetricsCache) InvalidateReport(ctx context.Context, reportID int64) error {
	_, err := deleteKeysWithPrefix(ctx, c.client, reportPrefix(reportID))
	return err
}

func (c *redisMetricsCache) InvalidateAll(ctx context.Context) error {
	_, err := deleteKeysWithPrefix(ctx, c.client, metricsKeyPrefix+":")
	return err
}

func (n *noopMetricsCache) Get(ctx context.Context, reportID int64, fingerprint string) (*metrics.MetricResult, bool, error) {
	return nil, false, nil
}

func (n *noopMetricsCache) Set(ctx context.Context, reportID int64, fingerprint string, result *metrics.MetricResult) error {
	return nil
}

func (n *noopMetricsCache) InvalidateReport(ctx context.Context, reportID int64) error {
	return nil
}

func (n *noopMetricsCache) InvalidateAll(ctx context.Context) error {
	return nil
}
