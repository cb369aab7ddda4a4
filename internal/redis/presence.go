package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"delivery/internal/domain"
)

// PresenceStore tracks which drivers of each vehicle tier are online.
// It backs the dispatch search timeout (an empty tier set means there is
// nobody to offer the order to) and survives process restarts, unlike
// the hub's in-memory room membership.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore creates a new PresenceStore.
func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func tierKey(tier domain.VehicleTier) string {
	return "presence:" + string(tier)
}

// SetOnline adds a driver to their tier's presence set.
func (s *PresenceStore) SetOnline(ctx context.Context, driverID string, tier domain.VehicleTier) error {
	return s.client.SAdd(ctx, tierKey(tier), driverID).Err()
}

// SetOffline removes a driver from their tier's presence set.
func (s *PresenceStore) SetOffline(ctx context.Context, driverID string, tier domain.VehicleTier) error {
	return s.client.SRem(ctx, tierKey(tier), driverID).Err()
}

// OnlineCount returns the number of online drivers of a tier.
func (s *PresenceStore) OnlineCount(ctx context.Context, tier domain.VehicleTier) (int64, error) {
	return s.client.SCard(ctx, tierKey(tier)).Result()
}

// OnlineDrivers returns the IDs of online drivers of a tier.
func (s *PresenceStore) OnlineDrivers(ctx context.Context, tier domain.VehicleTier) ([]string, error) {
	return s.client.SMembers(ctx, tierKey(tier)).Result()
}
