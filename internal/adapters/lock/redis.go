package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/crease/pkg/metrics"
)

// unlockLua deletes the key only while it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis is a lock shared by every service instance using the same Redis.
// The TTL bounds how long a crashed holder can block a match.
type Redis struct {
	rdb    redis.UniversalClient
	unlock *redis.Script
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

var _ Locker = (*Redis)(nil)

// NewRedis builds a Redis lock with the given TTL and wait bound.
func NewRedis(rdb redis.UniversalClient, ttl, wait time.Duration) *Redis {
	return &Redis{
		rdb:    rdb,
		unlock: redis.NewScript(unlockLua),
		ttl:    ttl,
		wait:   wait,
		poll:   20 * time.Millisecond,
	}
}

func lockKey(key string) string {
	return "crease:lock:" + key
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	token := uuid.NewString()
	lk := lockKey(key)
	deadline := start.Add(r.wait)

	for {
		ok, err := r.rdb.SetNX(ctx, lk, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			metrics.RecordLockTimeout()
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.poll):
		}
	}
	metrics.RecordLockWait(metrics.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.unlock.Run(unlockCtx, r.rdb, []string{lk}, token).Err()
		})
	}, nil
}
