package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
)

// ErrLockNotObtained is returned when another holder owns the lock. It is a
// ledger.ErrConcurrentModification so callers can reject without importing cache.
var ErrLockNotObtained = fmt.Errorf("lock not obtained: %w", ledger.ErrConcurrentModification)

// Locker hands out short-lived Redis locks.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewLocker builds a locker on client. ttl bounds how long a crashed holder blocks others.
func NewLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: redislock.New(client), ttl: ttl, log: log.Named("locker")}
}

// Obtain takes key without waiting. The returned func releases it.
func (l *Locker) Obtain(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrLockNotObtained)
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// Release with a fresh context: the request context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
