package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// ThreadCache holds ThreadView snapshots for polling clients. Misses and
// backend errors both fall through to the database.
type ThreadCache interface {
	Get(ctx context.Context, threadID uuid.UUID) (*ThreadView, bool)
	Set(ctx context.Context, view *ThreadView)
	Invalidate(ctx context.Context, threadID uuid.UUID)
}

type noopThreadCache struct{}

func NewNoopThreadCache() ThreadCache { return noopThreadCache{} }

func (noopThreadCache) Get(context.Context, uuid.UUID) (*ThreadView, bool) { return nil, false }
func (noopThreadCache) Set(context.Context, *ThreadView)                   {}
func (noopThreadCache) Invalidate(context.Context, uuid.UUID)              {}

type redisThreadCache struct {
	log    *logger.Logger
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisThreadCache(log *logger.Logger, rdb redis.UniversalClient, ttl time.Duration) ThreadCache {
	if rdb == nil {
		return NewNoopThreadCache()
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &redisThreadCache{
		log:    log.With("service", "RedisThreadCache"),
		rdb:    rdb,
		ttl:    ttl,
		prefix: "fq:thread:",
	}
}

func (c *redisThreadCache) key(id uuid.UUID) string { return c.prefix + id.String() }

func (c *redisThreadCache) Get(ctx context.Context, threadID uuid.UUID) (*ThreadView, bool) {
	raw, err := c.rdb.Get(ctx, c.key(threadID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Thread cache read failed", "thread_id", threadID, "error", err)
		}
		return nil, false
	}
	var v ThreadView
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.Warn("Thread cache entry unreadable", "thread_id", threadID, "error", err)
		return nil, false
	}
	return &v, true
}

func (c *redisThreadCache) Set(ctx context.Context, view *ThreadView) {
	if view == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(view.ThreadID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Thread cache write failed", "thread_id", view.ThreadID, "error", err)
	}
}

func (c *redisThreadCache) Invalidate(ctx context.Context, threadID uuid.UUID) {
	if err := c.rdb.Del(ctx, c.key(threadID)).Err(); err != nil {
		c.log.Warn("Thread cache invalidation failed", "thread_id", threadID, "error", err)
	}
}
