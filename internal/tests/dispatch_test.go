package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/service"
)

func newDispatchService(orderRepo *MockOrderRepository, driverRepo *MockDriverRepository, broadcast *MockBroadcaster) *service.DispatchService {
	return service.NewDispatchService(
		orderRepo,
		driverRepo,
		NewMockLockStore(),
		NewMockPresenceStore(),
		broadcast,
		service.NewNotificationService(),
		0, // no search timeout in unit tests
	)
}

func pendingOrder(id string, tier domain.VehicleTier) *domain.Order {
	return &domain.Order{
		ID:          id,
		CustomerID:  "customer-1",
		VehicleTier: tier,
		Status:      domain.OrderStatusPending,
		Pickup:      domain.Location{Lat: 12.97, Lng: 77.59},
		Drop:        domain.Location{Lat: 12.93, Lng: 77.61},
		CreatedAt:   time.Now(),
	}
}

func onlineDriver(id string, tier domain.VehicleTier) *domain.Driver {
	return &domain.Driver{
		ID:          id,
		Name:        "Driver " + id,
		VehicleTier: tier,
		Active:      true,
		Online:      true,
	}
}

func TestTryClaim_SingleWinner(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	broadcast := NewMockBroadcaster()
	dispatch := newDispatchService(orderRepo, driverRepo, broadcast)

	orderRepo.AddOrder(pendingOrder("order-1", domain.VehicleTierCar))

	const numDrivers = 20
	for i := 0; i < numDrivers; i++ {
		driverRepo.AddDriver(onlineDriver(driverID(i), domain.VehicleTierCar))
	}

	var wins, taken int32
	var winner atomic.Value
	var wg sync.WaitGroup

	wg.Add(numDrivers)
	for i := 0; i < numDrivers; i++ {
		go func(i int) {
			defer wg.Done()
			result, err := dispatch.TryClaim(ctx, driverID(i), "order-1")
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
				winner.Store(result.Order.DriverID)
			case errors.Is(err, service.ErrOrderTaken):
				atomic.AddInt32(&taken, 1)
			default:
				t.Errorf("driver %d: unexpected error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
	if wins+taken != numDrivers {
		t.Errorf("expected %d total outcomes, got %d wins + %d taken", numDrivers, wins, taken)
	}

	// The stored order must carry the winning driver.
	order := orderRepo.GetOrder("order-1")
	if order.Status != domain.OrderStatusDriverAssigned {
		t.Errorf("expected driver_assigned, got %s", order.Status)
	}
	if order.DriverID != winner.Load().(string) {
		t.Errorf("stored driver %s does not match winner %s", order.DriverID, winner.Load())
	}
}

func driverID(i int) string {
	return "driver-" + string(rune('a'+i))
}

func TestTryClaim_SecondClaimGetsOrderTaken(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatch := newDispatchService(orderRepo, driverRepo, NewMockBroadcaster())

	orderRepo.AddOrder(pendingOrder("order-1", domain.VehicleTierBike))
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierBike))
	driverRepo.AddDriver(onlineDriver("driver-2", domain.VehicleTierBike))

	if _, err := dispatch.TryClaim(ctx, "driver-1", "order-1"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	_, err := dispatch.TryClaim(ctx, "driver-2", "order-1")
	if !errors.Is(err, service.ErrOrderTaken) {
		t.Errorf("expected ErrOrderTaken, got %v", err)
	}
}

func TestTryClaim_OfflineDriverRejected(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatch := newDispatchService(orderRepo, driverRepo, NewMockBroadcaster())

	orderRepo.AddOrder(pendingOrder("order-1", domain.VehicleTierCar))

	offline := onlineDriver("driver-1", domain.VehicleTierCar)
	offline.Online = false
	driverRepo.AddDriver(offline)

	_, err := dispatch.TryClaim(ctx, "driver-1", "order-1")
	if !errors.Is(err, service.ErrDriverNotEligible) {
		t.Errorf("expected ErrDriverNotEligible, got %v", err)
	}

	// The order must be untouched.
	if got := orderRepo.GetOrder("order-1").Status; got != domain.OrderStatusPending {
		t.Errorf("expected order still pending, got %s", got)
	}
}

func TestTryClaim_TierMismatchRejected(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatch := newDispatchService(orderRepo, driverRepo, NewMockBroadcaster())

	orderRepo.AddOrder(pendingOrder("order-1", domain.VehicleTierTruck))
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierBike))

	_, err := dispatch.TryClaim(ctx, "driver-1", "order-1")
	if !errors.Is(err, service.ErrDriverNotEligible) {
		t.Errorf("expected ErrDriverNotEligible, got %v", err)
	}
}

func TestTryClaim_MissingOrder(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatch := newDispatchService(orderRepo, driverRepo, NewMockBroadcaster())

	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))

	_, err := dispatch.TryClaim(ctx, "driver-1", "no-such-order")
	if !errors.Is(err, service.ErrOrderNotAvailable) {
		t.Errorf("expected ErrOrderNotAvailable, got %v", err)
	}
}

func TestTryClaim_CancelledOrderNotAvailable(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatch := newDispatchService(orderRepo, driverRepo, NewMockBroadcaster())

	order := pendingOrder("order-1", domain.VehicleTierCar)
	order.Status = domain.OrderStatusCancelled
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))

	_, err := dispatch.TryClaim(ctx, "driver-1", "order-1")
	if !errors.Is(err, service.ErrOrderNotAvailable) {
		t.Errorf("expected ErrOrderNotAvailable, got %v", err)
	}
}

func TestTryClaim_WinBroadcastsToRooms(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	broadcast := NewMockBroadcaster()
	dispatch := newDispatchService(orderRepo, driverRepo, broadcast)

	orderRepo.AddOrder(pendingOrder("order-1", domain.VehicleTierVan))
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierVan))

	if _, err := dispatch.TryClaim(ctx, "driver-1", "order-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Customer's order room hears about the assignment.
	events := broadcast.EventsIn(hub.OrderRoom("order-1"))
	if len(events) != 1 || events[0] != hub.EventDriverAssigned {
		t.Errorf("expected [driverAssigned] in order room, got %v", events)
	}

	// Tier pool hears the eviction, excluding the winner.
	found := false
	for _, r := range broadcast.Records() {
		if r.Room == hub.TierPoolRoom(string(domain.VehicleTierVan)) && r.Event.Name == hub.EventOrderTaken {
			found = true
			if r.Except != "driver-1" {
				t.Errorf("orderTaken should exclude the winner, excluded %q", r.Except)
			}
		}
	}
	if !found {
		t.Error("expected orderTaken broadcast to the tier pool")
	}
}

func TestAnnounce_SearchTimeoutNotifiesWhenStillPending(t *testing.T) {
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	broadcast := NewMockBroadcaster()
	dispatch := service.NewDispatchService(
		orderRepo,
		driverRepo,
		NewMockLockStore(),
		NewMockPresenceStore(),
		broadcast,
		service.NewNotificationService(),
		20*time.Millisecond,
	)

	order := pendingOrder("order-1", domain.VehicleTierCar)
	orderRepo.AddOrder(order)

	dispatch.Announce(context.Background(), order)

	deadline := time.After(2 * time.Second)
	for {
		events := broadcast.EventsIn(hub.OrderRoom("order-1"))
		if len(events) > 0 {
			if events[0] != hub.EventNoDriversAvailable {
				t.Errorf("expected noDriversAvailable, got %v", events)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("search timeout never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The order stays pending and cancellable.
	if got := orderRepo.GetOrder("order-1").Status; got != domain.OrderStatusPending {
		t.Errorf("expected order still pending after timeout, got %s", got)
	}
}

func TestAnnounce_SearchTimeoutSilentAfterClaim(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	broadcast := NewMockBroadcaster()
	dispatch := service.NewDispatchService(
		orderRepo,
		driverRepo,
		NewMockLockStore(),
		NewMockPresenceStore(),
		broadcast,
		service.NewNotificationService(),
		20*time.Millisecond,
	)

	order := pendingOrder("order-1", domain.VehicleTierCar)
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))

	dispatch.Announce(ctx, order)
	if _, err := dispatch.TryClaim(ctx, "driver-1", "order-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	for _, name := range broadcast.EventsIn(hub.OrderRoom("order-1")) {
		if name == hub.EventNoDriversAvailable {
			t.Error("noDriversAvailable fired for a claimed order")
		}
	}
}
