package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/models"
)

// CachedTimelineService is a read-through Redis cache in front of a
// TimelineService. Reconciliation is deterministic for a fixed store state,
// so a reconciled day can be reused until a writer touches that day. Cache
// failures are never surfaced: the inner service is the source of truth and
// every degraded path falls back to it.
type CachedTimelineService struct {
	inner  TimelineService
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTimelineService wraps inner with a Redis day cache.
func NewCachedTimelineService(inner TimelineService, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedTimelineService {
	return &CachedTimelineService{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.Named("timeline-cache"),
	}
}

var _ TimelineService = (*CachedTimelineService)(nil)
var _ TimelineInvalidator = (*CachedTimelineService)(nil)

// cacheDate collapses a timestamp to its calendar date in the server
// location. Writers carry client-supplied timestamps in arbitrary zones;
// without the normalization an offset timestamp would key a different date
// than the read path and miss the entry it should invalidate.
func cacheDate(ts time.Time) string {
	return ts.In(time.Local).Format("2006-01-02")
}

// bindingSetDigest hashes the caller's binding set in canonical order.
// Requests scoped to different binding sets reconcile different timelines,
// so the set is part of the entry identity.
func bindingSetDigest(userVariableIDs []uuid.UUID) string {
	ids := make([]string, len(userVariableIDs))
	for i, id := range userVariableIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:8])
}

func timelineCacheKey(userID uuid.UUID, day time.Time, userVariableIDs []uuid.UUID) string {
	return fmt.Sprintf("timeline:v2:%s:%s:%s", userID, cacheDate(day), bindingSetDigest(userVariableIDs))
}

// timelineIndexKey names the set of entry keys cached for one user day.
// Invalidation walks this set so every binding-set variant is dropped.
func timelineIndexKey(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("timeline:v2:%s:%s:keys", userID, cacheDate(day))
}

func (c *CachedTimelineService) ReconcileDay(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID, day time.Time) ([]*models.TimelineItem, error) {
	key := timelineCacheKey(userID, day, userVariableIDs)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var items []*models.TimelineItem
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
		c.logger.Warn("Discarding undecodable timeline cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("Timeline cache read failed", zap.String("key", key), zap.Error(err))
	}

	items, err := c.inner.ReconcileDay(ctx, userID, userVariableIDs, day)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(items); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("Timeline cache write failed", zap.String("key", key), zap.Error(err))
		} else {
			indexKey := timelineIndexKey(userID, day)
			if err := c.client.SAdd(ctx, indexKey, key).Err(); err != nil {
				c.logger.Warn("Timeline cache index write failed", zap.String("key", indexKey), zap.Error(err))
			}
			c.client.Expire(ctx, indexKey, c.ttl)
		}
	}

	return items, nil
}

// InvalidateDay drops every cached reconciliation for the day containing ts,
// across all binding sets cached for that day.
func (c *CachedTimelineService) InvalidateDay(ctx context.Context, userID uuid.UUID, ts time.Time) {
	indexKey := timelineIndexKey(userID, ts)
	keys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		c.logger.Warn("Timeline cache invalidation failed", zap.String("key", indexKey), zap.Error(err))
		return
	}
	keys = append(keys, indexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Timeline cache invalidation failed", zap.String("key", indexKey), zap.Error(err))
	}
}
