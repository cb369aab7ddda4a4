package redis

import (
	"context"
	"time"

	"delivery/internal/domain"
)

// LocationStoreInterface defines the interface for driver location
// operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// PresenceStoreInterface defines the interface for tier presence sets.
type PresenceStoreInterface interface {
	SetOnline(ctx context.Context, driverID string, tier domain.VehicleTier) error
	SetOffline(ctx context.Context, driverID string, tier domain.VehicleTier) error
	OnlineCount(ctx context.Context, tier domain.VehicleTier) (int64, error)
	OnlineDrivers(ctx context.Context, tier domain.VehicleTier) ([]string, error)
}

// LockStoreInterface defines the interface for advisory locking.
type LockStoreInterface interface {
	AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ PresenceStoreInterface = (*PresenceStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
