package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTickLock implements TickLock with SET NX so that replicas sharing a
// Redis instance fire each cron tick once.
type RedisTickLock struct {
	client redis.Cmdable
	prefix string
}

func NewRedisTickLock(client redis.Cmdable, prefix string) *RedisTickLock {
	return &RedisTickLock{client: client, prefix: prefix}
}

func (l *RedisTickLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, "1", ttl).Result()
}
