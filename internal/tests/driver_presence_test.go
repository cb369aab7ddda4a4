package tests

import (
	"context"
	"errors"
	"testing"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/service"
)

func newDriverService(driverRepo *MockDriverRepository, orderRepo *MockOrderRepository, locations *MockLocationStore, presence *MockPresenceStore, broadcast *MockBroadcaster) *service.DriverService {
	return service.NewDriverService(driverRepo, orderRepo, locations, presence, broadcast)
}

func TestSetOnline_JoinsTierPresence(t *testing.T) {
	ctx := context.Background()

	driverRepo := NewMockDriverRepository()
	presence := NewMockPresenceStore()
	svc := newDriverService(driverRepo, NewMockOrderRepository(), NewMockLocationStore(), presence, NewMockBroadcaster())

	driver := onlineDriver("driver-1", domain.VehicleTierBike)
	driver.Online = false
	driverRepo.AddDriver(driver)

	tier, err := svc.SetOnline(ctx, "driver-1")
	if err != nil {
		t.Fatalf("set online failed: %v", err)
	}
	if tier != domain.VehicleTierBike {
		t.Errorf("expected BIKE, got %s", tier)
	}
	if !driverRepo.GetDriver("driver-1").Online {
		t.Error("expected online flag set")
	}
	if !presence.IsOnline("driver-1", domain.VehicleTierBike) {
		t.Error("expected tier presence membership")
	}
}

func TestDriverDisconnected_ForcesOffline(t *testing.T) {
	ctx := context.Background()

	driverRepo := NewMockDriverRepository()
	locations := NewMockLocationStore()
	presence := NewMockPresenceStore()
	svc := newDriverService(driverRepo, NewMockOrderRepository(), locations, presence, NewMockBroadcaster())

	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))
	if _, err := svc.SetOnline(ctx, "driver-1"); err != nil {
		t.Fatalf("set online failed: %v", err)
	}
	if err := locations.UpdateLocation(ctx, "driver-1", 12.9, 77.6); err != nil {
		t.Fatalf("location seed failed: %v", err)
	}

	// The hub calls this on every disconnect path, graceful or abrupt.
	svc.DriverDisconnected(ctx, "driver-1")

	if driverRepo.GetDriver("driver-1").Online {
		t.Error("expected online flag forced false")
	}
	if presence.IsOnline("driver-1", domain.VehicleTierCar) {
		t.Error("expected tier presence cleared")
	}
	if locations.HasLocation("driver-1") {
		t.Error("expected location cleared")
	}
}

func TestNearbyDrivers_OnlineTierMembersOnly(t *testing.T) {
	ctx := context.Background()

	locations := NewMockLocationStore()
	presence := NewMockPresenceStore()
	svc := newDriverService(NewMockDriverRepository(), NewMockOrderRepository(), locations, presence, NewMockBroadcaster())

	// Three drivers with locations; only one is an online CAR driver.
	for i, driverID := range []string{"driver-1", "driver-2", "driver-3"} {
		if err := locations.UpdateLocation(ctx, driverID, 12.9+float64(i)/100, 77.6); err != nil {
			t.Fatalf("location seed failed: %v", err)
		}
	}
	if err := presence.SetOnline(ctx, "driver-1", domain.VehicleTierCar); err != nil {
		t.Fatalf("presence seed failed: %v", err)
	}
	if err := presence.SetOnline(ctx, "driver-3", domain.VehicleTierBike); err != nil {
		t.Fatalf("presence seed failed: %v", err)
	}

	nearby, err := svc.NearbyDrivers(ctx, 12.9, 77.6, 0, domain.VehicleTierCar)
	if err != nil {
		t.Fatalf("nearby lookup failed: %v", err)
	}
	if len(nearby) != 1 || nearby[0].DriverID != "driver-1" {
		t.Errorf("expected only the online CAR driver, got %v", nearby)
	}
}

func TestNearbyDrivers_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := newDriverService(NewMockDriverRepository(), NewMockOrderRepository(), NewMockLocationStore(), NewMockPresenceStore(), NewMockBroadcaster())

	if _, err := svc.NearbyDrivers(ctx, 95, 77.6, 0, domain.VehicleTierCar); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
	if _, err := svc.NearbyDrivers(ctx, 12.9, 77.6, 0, "SCOOTER"); !errors.Is(err, service.ErrInvalidVehicleTier) {
		t.Errorf("expected ErrInvalidVehicleTier, got %v", err)
	}
}

func TestUpdateLocation_FansOutToOrderRoom(t *testing.T) {
	ctx := context.Background()

	driverRepo := NewMockDriverRepository()
	orderRepo := NewMockOrderRepository()
	broadcast := NewMockBroadcaster()
	svc := newDriverService(driverRepo, orderRepo, NewMockLocationStore(), NewMockPresenceStore(), broadcast)

	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	err := svc.UpdateLocation(ctx, domain.DriverIdentity("driver-1"), service.UpdateLocationRequest{
		Lat: 12.95, Lng: 77.60, OrderID: "order-1",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	events := broadcast.EventsIn(hub.OrderRoom("order-1"))
	if len(events) != 1 || events[0] != hub.EventDriverLocation {
		t.Errorf("expected [driverLocation] in order room, got %v", events)
	}
}

func TestUpdateLocation_RejectsForeignOrder(t *testing.T) {
	ctx := context.Background()

	driverRepo := NewMockDriverRepository()
	orderRepo := NewMockOrderRepository()
	broadcast := NewMockBroadcaster()
	svc := newDriverService(driverRepo, orderRepo, NewMockLocationStore(), NewMockPresenceStore(), broadcast)

	driverRepo.AddDriver(onlineDriver("driver-2", domain.VehicleTierCar))
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	err := svc.UpdateLocation(ctx, domain.DriverIdentity("driver-2"), service.UpdateLocationRequest{
		Lat: 12.95, Lng: 77.60, OrderID: "order-1",
	})
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if len(broadcast.EventsIn(hub.OrderRoom("order-1"))) != 0 {
		t.Error("foreign driver's location must not reach the order room")
	}
}

func TestUpdateLocation_RejectsBadCoordinatesAndRole(t *testing.T) {
	ctx := context.Background()
	svc := newDriverService(NewMockDriverRepository(), NewMockOrderRepository(), NewMockLocationStore(), NewMockPresenceStore(), NewMockBroadcaster())

	err := svc.UpdateLocation(ctx, domain.DriverIdentity("driver-1"), service.UpdateLocationRequest{Lat: 95, Lng: 0})
	if !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}

	err = svc.UpdateLocation(ctx, domain.CustomerIdentity("customer-1"), service.UpdateLocationRequest{Lat: 12, Lng: 77})
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
