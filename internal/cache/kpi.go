package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"icu-bed-management/internal/metrics"
	"icu-bed-management/internal/models"

	"go.uber.org/zap"
)

const generationKey = "icu:kpi:generation"

// KPICache stores computed dashboard KPIs per window.
// Keys embed a generation counter; bumping it makes every cached window stale at once.
// A nil *KPICache is a valid, always-missing cache.
type KPICache struct {
	kv      KVStore
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewKPICache(kv KVStore, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *KPICache {
	return &KPICache{
		kv:      kv,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// KeyFor resolves the cache key for the window under the current generation.
// Resolve it before reading the data the KPI is built from: an Invalidate that lands
// in between then orphans the entry instead of refreshing it with stale numbers.
// The second return is false when the cache is disabled or unreachable.
func (c *KPICache) KeyFor(ctx context.Context, start, end time.Time) (string, bool) {
	if c == nil {
		return "", false
	}

	gen, err := c.kv.Get(ctx, generationKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("KPI cache unavailable", zap.Error(err))
			return "", false
		}
		gen = "0"
	}
	return fmt.Sprintf("icu:kpi:%s:%d:%d", gen, start.Unix(), end.Unix()), true
}

// Get returns the KPI cached under key, if present
func (c *KPICache) Get(ctx context.Context, key string) (*models.UnitKPI, bool) {
	if c == nil || key == "" {
		return nil, false
	}

	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("KPI cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.ObserveKPICache(false)
		return nil, false
	}

	var kpi models.UnitKPI
	if err := json.Unmarshal([]byte(raw), &kpi); err != nil {
		c.logger.Warn("Discarding undecodable KPI cache entry", zap.String("key", key), zap.Error(err))
		c.metrics.ObserveKPICache(false)
		return nil, false
	}
	c.metrics.ObserveKPICache(true)
	return &kpi, true
}

// Put stores the KPI under key
func (c *KPICache) Put(ctx context.Context, key string, kpi *models.UnitKPI) {
	if c == nil || key == "" {
		return
	}

	data, err := json.Marshal(kpi)
	if err != nil {
		c.logger.Warn("Failed to marshal KPI", zap.Error(err))
		return
	}

	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("KPI cache write failed", zap.String("key", key), zap.Error(err))
		return
	}

	c.logger.Debug("Updated KPI cache", zap.String("key", key))
}

// Invalidate makes every cached window stale
func (c *KPICache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if _, err := c.kv.Incr(ctx, generationKey); err != nil {
		c.logger.Warn("KPI cache invalidation failed", zap.Error(err))
	}
}
