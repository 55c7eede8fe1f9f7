package directory

import (
	"brokerage/pkg/logger"
	"brokerage/pkg/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	kindProperty = "property"
	kindUser     = "user"
)

// CachedDirectory is a read-through Redis cache in front of another
// Directory. Redis failures are treated as misses. Not-found results are
// never cached so a newly created record is visible immediately.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func cacheKey(kind string, id int64) string {
	return fmt.Sprintf("directory:%s:%d", kind, id)
}

func (c *CachedDirectory) FindProperty(ctx context.Context, id int64) (*model.Property, error) {
	return readThrough(ctx, c, cacheKey(kindProperty, id), func() (*model.Property, error) {
		return c.next.FindProperty(ctx, id)
	})
}

func (c *CachedDirectory) FindUser(ctx context.Context, id int64) (*model.User, error) {
	return readThrough(ctx, c, cacheKey(kindUser, id), func() (*model.User, error) {
		return c.next.FindUser(ctx, id)
	})
}

func readThrough[T any](ctx context.Context, c *CachedDirectory, key string, load func() (*T, error)) (*T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &cached, nil
		}
		c.log.Warn("Discarding undecodable directory cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("Directory cache read failed", "key", key, "error", err)
	}

	value, err := load()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("Directory cache write failed", "key", key, "error", err)
	}
	return value, nil
}
