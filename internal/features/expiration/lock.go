package expiration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
)

// Locker prevents two sweeps from running at once.
// Acquire fails with common.ErrSweepInProgress when the lock is held.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalLocker guards sweeps inside one process.
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker { return &LocalLocker{} }

func (l *LocalLocker) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, common.ErrSweepInProgress
	}
	return l.mu.Unlock, nil
}

// LockKey is the redis key holding the sweep lock.
const LockKey = "billing:sweep:lock"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker guards sweeps across replicas. The TTL bounds how long a
// crashed holder blocks the next run.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	err := l.client.SetArgs(ctx, LockKey, token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrSweepInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{LockKey}, token).Err(); err != nil {
			log.WithError(err).Warn("failed to release sweep lock")
		}
	}
	return release, nil
}
