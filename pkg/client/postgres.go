package client

import (
	"brokerage/pkg/logger"
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SetPostgres opens the pool used for read-only lookups against the back
// office database that owns properties and users.
func (c *Client) SetPostgres(log *logger.Logger, url string, maxConns int, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Fatal("Failed to parse Postgres URL", "error", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create Postgres pool", "error", err)
	}

	if err := pool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping Postgres", "error", err)
	}

	log.Info("Successfully connected to Postgres", "max_conns", poolConfig.MaxConns)
	c.Postgres = pool
}
