/*
store.go - Collaborator interfaces shared by the domain packages

PURPOSE:
  Defines the seams between domain logic and infrastructure. Domain
  packages depend on these interfaces; store/sqlstore and cache provide
  the implementations, wired together in cmd/server.

KEY INTERFACES:
  Transactor:  Runs a function inside one storage transaction
  Invalidator: Drops cached read models after a successful mutation
  Cache:       Read-through JSON cache (Invalidator + get/set)

TRANSACTIONS:
  The transaction travels inside the context.Context handed to fn. Every
  store method called with that context joins the same transaction, and a
  nested WithTx joins the outer one instead of opening a second. Returning
  an error from fn rolls everything back.

INVALIDATION:
  Runs after commit and before the caller sees success. Failures are
  logged and swallowed: the primary write has already happened.

SEE ALSO:
  - store/sqlstore/sqlstore.go: Transactor implementation
  - cache/redis.go, cache/memory.go: Cache implementations
*/
package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// TRANSACTOR
// =============================================================================

// Transactor runs fn atomically. fn must use the context it is given.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// =============================================================================
// CACHE
// =============================================================================

// Invalidator drops cached entries.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Cache is a JSON read-through cache.
type Cache interface {
	Invalidator
	// GetJSON decodes the cached value into dest. found is false on a miss.
	GetJSON(ctx context.Context, key string, dest any) (found bool, err error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Invalidate is the best-effort wrapper every mutation calls after commit.
func Invalidate(ctx context.Context, inv Invalidator, log *zap.Logger, keys ...string) {
	if inv == nil || len(keys) == 0 {
		return
	}
	if err := inv.Invalidate(ctx, keys...); err != nil {
		log.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Cached returns the value under key, loading and storing it on a miss.
// Cache errors fall through to load.
func Cached[T any](ctx context.Context, c Cache, log *zap.Logger, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	var v T
	found, err := c.GetJSON(ctx, key, &v)
	if err != nil {
		log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found && err == nil {
		return v, nil
	}

	v, err = load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.SetJSON(ctx, key, v, ttl); err != nil {
		log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
