package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Release only deletes the key while it still carries our token, so an expired lock
// re-acquired by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a Redis-backed mutual exclusion lock keyed by string, usable across
// processes.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewLocker constructs a Locker. ttl bounds how long a crashed holder blocks others.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("platform/cache: lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrLockTimeout, key, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
