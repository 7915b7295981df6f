// Package redislock provides a minimal keyed lock on top of Redis SET NX.
// This is part of the platform layer and contains no business logic.
package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is held by another owner
// and could not be acquired within the wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker acquires short-lived named locks.
type Locker struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
	maxWait   time.Duration
}

// Lock is a held lock that must be released by the holder.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// New creates a Locker. Locks expire after ttl even if never released.
func New(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{
		client:    client,
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
		maxWait:   2 * time.Second,
	}
}

// Acquire takes the lock named by key, retrying until the wait budget is
// spent. Returns ErrNotAcquired when the budget runs out.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{locker: l, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}
}

// Release frees the lock if it is still held by this owner.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil {
		return nil
	}
	return lk.locker.client.Eval(ctx, releaseScript, []string{lk.key}, lk.token).Err()
}
