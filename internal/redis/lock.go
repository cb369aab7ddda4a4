package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore provides short-TTL advisory locks. The claim path uses one
// per order to shed duplicate claim writes early; correctness never
// depends on it, the conditional UPDATE in the order repository is the
// authoritative arbiter.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireOrderLock attempts to acquire the advisory lock for an order.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:order:%s", orderID)
	return s.client.SetNX(ctx, key, "1", ttl).Result()
}

// ReleaseOrderLock releases the advisory lock for an order.
func (s *LockStore) ReleaseOrderLock(ctx context.Context, orderID string) error {
	key := fmt.Sprintf("lock:order:%s", orderID)
	return s.client.Del(ctx, key).Err()
}
