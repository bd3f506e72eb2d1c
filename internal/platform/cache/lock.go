package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 25 * time.Millisecond

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed mutex on top of SET NX PX. The TTL bounds how long
// a crashed holder can keep a key.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewLocker creates a lock that expires after ttl.
func NewLocker(client redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl, prefix: "lock:"}
}

// Locker returns a distributed lock backed by this cache.
func (c *Cache) Locker(ttl time.Duration) *Locker {
	return NewLocker(c.Client, ttl)
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	name := l.prefix + key

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := releaseScript.Run(ctx, l.client, []string{name}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			slog.Warn("failed to release lock", "key", key, "error", err)
		}
	}, nil
}
