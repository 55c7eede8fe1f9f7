package client

import (
	"brokerage/pkg/logger"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetRedis connects the directory cache. Unlike Mongo and Postgres a
// failed ping is not fatal: the cache is optional and lookups fall back
// to the directory itself.
func (c *Client) SetRedis(log *logger.Logger, url string, connTimeout time.Duration) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Fatal("Failed to parse Redis URL", "error", err)
	}
	opts.DialTimeout = connTimeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis ping failed, directory cache will miss until it recovers", "error", err)
	} else {
		log.Info("Successfully connected to Redis", "addr", opts.Addr)
	}

	c.Redis = rdb
}
