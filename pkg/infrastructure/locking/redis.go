package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a distributed keyed lock built on SET NX with a TTL
type RedisLocker struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
	logger     *zap.Logger
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can block others.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 50 * time.Millisecond,
		prefix:     "lock:inventory:",
		logger:     logger,
	}
}

// Acquire takes every key in sorted order, retrying until ctx ends
func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	var held []string

	release := func() {
		// release even if the caller's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), l.ttl)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(releaseCtx, l.client, []string{held[i]}, token).Err(); err != nil {
				l.logger.Error("failed to release lock", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}

	for _, key := range keys {
		redisKey := l.prefix + key
		for {
			ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
			if err != nil {
				release()
				return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
			}
			if ok {
				held = append(held, redisKey)
				break
			}

			select {
			case <-time.After(l.retryDelay):
			case <-ctx.Done():
				release()
				return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
		}
	}
	return release, nil
}
