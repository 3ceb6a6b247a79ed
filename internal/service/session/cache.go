package session

import (
	"context"
	"errors"
	"log"
	"time"

	"rephrasego/internal/models"
	"rephrasego/internal/redis"
)

const cacheKeyPrefix = "session:"

// Cache holds completed sessions in front of the database. Implementations
// must treat every failure as a miss.
type Cache interface {
	Load(ctx context.Context, id string) (*models.Session, bool)
	Store(ctx context.Context, sess *models.Session, ttl time.Duration)
	Invalidate(ctx context.Context, ids ...string)
}

type noopCache struct{}

func (noopCache) Load(context.Context, string) (*models.Session, bool)  { return nil, false }
func (noopCache) Store(context.Context, *models.Session, time.Duration) {}
func (noopCache) Invalidate(context.Context, ...string)                 {}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache returns a Cache backed by client, or nil when client is nil.
func NewRedisCache(client *redis.Client) Cache {
	if client == nil {
		return nil
	}
	return &redisCache{client: client}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

func (c *redisCache) Load(ctx context.Context, id string) (*models.Session, bool) {
	var sess models.Session
	if err := c.client.GetJSON(ctx, cacheKey(id), &sess); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("session cache load %s failed: %v", id, err)
		}
		return nil, false
	}
	return &sess, true
}

func (c *redisCache) Store(ctx context.Context, sess *models.Session, ttl time.Duration) {
	if sess == nil || sess.Pending() {
		return
	}
	if err := c.client.SetJSON(ctx, cacheKey(sess.ID), sess, ttl); err != nil {
		log.Printf("session cache store %s failed: %v", sess.ID, err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cacheKey(id))
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		log.Printf("session cache invalidate failed: %v", err)
	}
}
