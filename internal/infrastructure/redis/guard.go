package redisinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/lifelink-api/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection with a PING.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NotifyGuard claims (request, donor) pairs with SET NX and a TTL.
type NotifyGuard struct {
	rdb redis.Cmdable
}

func NewNotifyGuard(rdb redis.Cmdable) *NotifyGuard {
	return &NotifyGuard{rdb: rdb}
}

func guardKey(requestID, donorID string) string {
	return fmt.Sprintf("notify:%s:%s", requestID, donorID)
}

// Acquire returns true only for the first caller within ttl. Errors are
// returned to the caller, which treats them as not acquired.
func (g *NotifyGuard) Acquire(ctx context.Context, requestID, donorID string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, guardKey(requestID, donorID), time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
