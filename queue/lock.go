package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

var ErrLockNotHeld = errors.New("lock is not held")

var releaseIfOwner = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Lock is a best effort mutual exclusion between service instances. It expires
// after its ttl so a crashed holder never blocks the others for long.
type Lock struct {
	rdb   redis.Cmdable
	key   string
	ttl   time.Duration
	token string
}

func NewLock(rdb redis.Cmdable, name string, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, key: lockPrefix + name, ttl: ttl}
}

// TryAcquire returns false without error when another holder owns the lock.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release drops the lock only if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return ErrLockNotHeld
	}
	n, err := releaseIfOwner.Run(ctx, l.rdb, []string{l.key}, l.token).Int()
	l.token = ""
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
