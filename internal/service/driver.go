package service

import (
	"context"
	"errors"
	"log"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/redis"
	"delivery/internal/repository"
)

// DriverService handles driver presence and location.
type DriverService struct {
	driverRepo    repository.DriverRepository
	orderRepo     repository.OrderRepository
	locationStore redis.LocationStoreInterface
	presenceStore redis.PresenceStoreInterface
	broadcast     Broadcaster
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	driverRepo repository.DriverRepository,
	orderRepo repository.OrderRepository,
	locationStore redis.LocationStoreInterface,
	presenceStore redis.PresenceStoreInterface,
	broadcast Broadcaster,
) *DriverService {
	return &DriverService{
		driverRepo:    driverRepo,
		orderRepo:     orderRepo,
		locationStore: locationStore,
		presenceStore: presenceStore,
		broadcast:     broadcast,
	}
}

// UpdateLocationRequest contains the parameters for a location push.
type UpdateLocationRequest struct {
	Lat     float64
	Lng     float64
	OrderID string // optional: fan the position out to this order's room
}

// UpdateLocation records a driver's position and, when the driver is on
// an order, fans it out to the order room's subscribers.
func (s *DriverService) UpdateLocation(ctx context.Context, id domain.Identity, req UpdateLocationRequest) error {
	if id.Role != domain.RoleDriver || !id.Authenticated() {
		return unauthorized(id, "push a driver location")
	}
	if !validCoordinate(req.Lat, req.Lng) {
		return ErrInvalidLocation
	}

	driverID := id.Subject
	if err := s.locationStore.UpdateLocation(ctx, driverID, req.Lat, req.Lng); err != nil {
		return err
	}
	if err := s.driverRepo.UpdateLocation(ctx, driverID, req.Lat, req.Lng); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if req.OrderID == "" || s.broadcast == nil {
		return nil
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return err
	}
	if order.DriverID != driverID {
		return unauthorized(id, "report location for an order assigned to another driver")
	}

	s.broadcast.Broadcast(hub.OrderRoom(order.ID), hub.NewEvent(hub.EventDriverLocation, map[string]any{
		"order_id":  order.ID,
		"driver_id": driverID,
		"lat":       req.Lat,
		"lng":       req.Lng,
	}))
	return nil
}

// defaultNearbyRadiusKm bounds availability lookups that do not name a
// radius of their own.
const defaultNearbyRadiusKm = 5.0

// NearbyDriver is one available driver near a point.
type NearbyDriver struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// NearbyDrivers returns the tier's online drivers within radiusKm of a
// point, nearest first. The geo index outlives presence (locations are
// only cleared when a driver goes offline cleanly), so hits are checked
// against the tier presence set before they count as available.
func (s *DriverService) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, tier domain.VehicleTier) ([]NearbyDriver, error) {
	if !validCoordinate(lat, lng) {
		return nil, ErrInvalidLocation
	}
	if !domain.ValidVehicleTier(tier) {
		return nil, ErrInvalidVehicleTier
	}
	if radiusKm <= 0 {
		radiusKm = defaultNearbyRadiusKm
	}

	online, err := s.presenceStore.OnlineDrivers(ctx, tier)
	if err != nil {
		return nil, err
	}
	onTier := make(map[string]struct{}, len(online))
	for _, driverID := range online {
		onTier[driverID] = struct{}{}
	}

	hits, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyDriver, 0, len(hits))
	for _, hit := range hits {
		if _, ok := onTier[hit.DriverID]; !ok {
			continue
		}
		nearby = append(nearby, NearbyDriver{DriverID: hit.DriverID, Lat: hit.Lat, Lng: hit.Lng})
	}
	return nearby, nil
}

// SetOnline marks a driver available for dispatch.
func (s *DriverService) SetOnline(ctx context.Context, driverID string) (domain.VehicleTier, error) {
	if driverID == "" {
		return "", ErrInvalidDriverID
	}
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return "", err
	}

	if err := s.driverRepo.SetOnline(ctx, driverID, true); err != nil {
		return "", err
	}
	if err := s.presenceStore.SetOnline(ctx, driverID, driver.VehicleTier); err != nil {
		log.Printf("driver %s: presence set failed: %v", driverID, err)
	}
	return driver.VehicleTier, nil
}

// SetOffline marks a driver unavailable and clears their location.
func (s *DriverService) SetOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}

	if err := s.driverRepo.SetOnline(ctx, driverID, false); err != nil {
		return err
	}
	if err := s.presenceStore.SetOffline(ctx, driverID, driver.VehicleTier); err != nil {
		log.Printf("driver %s: presence clear failed: %v", driverID, err)
	}
	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		log.Printf("driver %s: location clear failed: %v", driverID, err)
	}
	return nil
}

// DriverConnected implements hub.Presence: a connecting driver goes
// online and joins their tier pool.
func (s *DriverService) DriverConnected(ctx context.Context, driverID string) (domain.VehicleTier, error) {
	return s.SetOnline(ctx, driverID)
}

// DriverDisconnected implements hub.Presence: any dropped driver
// connection forces the online flag false. This is the only automatic
// state mutation tied to connection lifecycle.
func (s *DriverService) DriverDisconnected(ctx context.Context, driverID string) {
	if err := s.SetOffline(ctx, driverID); err != nil {
		log.Printf("driver %s: forced-offline on disconnect failed: %v", driverID, err)
	}
}
