package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a SETNX lock shared by all instances. The TTL bounds how long a
// crashed owner blocks the others.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string
}

func NewLock(client *redis.Client, name string, ttl time.Duration) (*Lock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Lock{client: client, key: buildKey("lock", name), ttl: ttl}, nil
}

// Acquire reports whether this instance now owns the lock.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock if it is still ours; an expired lock taken over by
// another instance is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}
