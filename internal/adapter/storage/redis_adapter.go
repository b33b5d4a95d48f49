package storage

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix     = "lock:"
	defaultLockTTL    = 10 * time.Second
	defaultLockWait   = 5 * time.Second
	lockRetryInterval = 20 * time.Millisecond
)

var ErrLockTimeout = errors.New("lock wait timed out")

// Deletes the lock only while it still carries our token, so a holder whose
// TTL ran out cannot release a lock someone else has since taken.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter is a port.Locker shared by every engine instance that talks to
// the same Redis.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl, wait time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisAdapter{client: client, ttl: ttl, wait: wait}
}

func (r *RedisAdapter) Lock(ctx context.Context, key string) (func(), error) {
	key = lockKeyPrefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, key, token, r.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, err
		}
		if ok {
			return r.releaser(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

func (r *RedisAdapter) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				log.Printf("release %s failed: %v", key, err)
			}
		})
	}
}

func (r *RedisAdapter) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
