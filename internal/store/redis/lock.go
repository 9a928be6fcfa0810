package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held Redis lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Key returns the locked key.
func (l *Lock) Key() string { return l.key }

// Release frees the lock if it is still ours. Releasing an expired or
// already released lock is not an error.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// TryLock acquires key for ttl. ok is false when someone else holds it.
func (s *Store) TryLock(ctx context.Context, key string, ttl time.Duration) (lock *Lock, ok bool, err error) {
	token := uuid.NewString()

	acquired, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return &Lock{client: s.client, key: key, token: token}, true, nil
}

// LockEvent takes the per-event validation lock.
func (s *Store) LockEvent(ctx context.Context, id string, ttl time.Duration) (*Lock, bool, error) {
	return s.TryLock(ctx, EventLockKey(id), ttl)
}

// LockBatch takes the batch lock.
func (s *Store) LockBatch(ctx context.Context, ttl time.Duration) (*Lock, bool, error) {
	return s.TryLock(ctx, BatchLockKey(), ttl)
}

// EventLocker hands out per-event locks with a fixed TTL.
type EventLocker struct {
	store *Store
	ttl   time.Duration
}

// EventLocker returns a locker taking event locks for ttl.
func (s *Store) EventLocker(ttl time.Duration) *EventLocker {
	return &EventLocker{store: s, ttl: ttl}
}

// Acquire takes the lock for eventID. ok is false when another validation
// holds it.
func (l *EventLocker) Acquire(ctx context.Context, eventID string) (func(context.Context) error, bool, error) {
	lock, ok, err := l.store.LockEvent(ctx, eventID, l.ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lock.Release, true, nil
}
