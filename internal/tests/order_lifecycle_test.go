package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/service"
)

func newOrderService(orderRepo *MockOrderRepository, driverRepo *MockDriverRepository, promoRepo *MockPromoRepository, broadcast *MockBroadcaster) *service.OrderService {
	return service.NewOrderService(
		orderRepo,
		promoRepo,
		driverRepo,
		nil, // no dispatcher; announcement is covered separately
		broadcast,
		service.NewNotificationService(),
	)
}

func assignedOrder(id, driverID string) *domain.Order {
	o := pendingOrder(id, domain.VehicleTierCar)
	o.Status = domain.OrderStatusDriverAssigned
	o.DriverID = driverID
	return o
}

func TestPushStatus_FullDeliveryChain(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	svc := newOrderService(orderRepo, driverRepo, NewMockPromoRepository(), NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))

	driver := domain.DriverIdentity("driver-1")
	chain := []domain.OrderStatus{
		domain.OrderStatusDriverArrived,
		domain.OrderStatusPickupComplete,
		domain.OrderStatusInTransit,
		domain.OrderStatusDelivered,
	}

	for _, next := range chain {
		updated, err := svc.PushStatus(ctx, driver, "order-1", service.PushStatusRequest{To: next})
		if err != nil {
			t.Fatalf("push to %s failed: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected status %s, got %s", next, updated.Status)
		}
	}

	final := orderRepo.GetOrder("order-1")
	if final.PickedUpAt.IsZero() {
		t.Error("pickup_complete should set PickedUpAt")
	}
	if final.DeliveredAt.IsZero() {
		t.Error("delivered should set DeliveredAt")
	}
	if got := driverRepo.GetDriver("driver-1").TotalDeliveries; got != 1 {
		t.Errorf("expected 1 completed delivery, got %d", got)
	}
}

func TestPushStatus_SkippedStepRejected(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	// driver_assigned → in_transit skips two states.
	_, err := svc.PushStatus(ctx, domain.DriverIdentity("driver-1"), "order-1", service.PushStatusRequest{
		To: domain.OrderStatusInTransit,
	})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	var te *service.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatal("expected an InvalidTransitionError")
	}
	if te.Current != domain.OrderStatusDriverAssigned || te.Requested != domain.OrderStatusInTransit {
		t.Errorf("error should name both states, got %v", te)
	}
}

func TestPushStatus_WrongDriverRejected(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	_, err := svc.PushStatus(ctx, domain.DriverIdentity("driver-2"), "order-1", service.PushStatusRequest{
		To: domain.OrderStatusDriverArrived,
	})
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// Status must not have moved.
	if got := orderRepo.GetOrder("order-1").Status; got != domain.OrderStatusDriverAssigned {
		t.Errorf("expected status unchanged, got %s", got)
	}
}

func TestPushStatus_CustomerCannotPush(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	_, err := svc.PushStatus(ctx, domain.CustomerIdentity("customer-1"), "order-1", service.PushStatusRequest{
		To: domain.OrderStatusDriverArrived,
	})
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCancel_AllowedThroughPickupComplete(t *testing.T) {
	ctx := context.Background()

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusDriverAssigned,
		domain.OrderStatusDriverArrived,
		domain.OrderStatusPickupComplete,
	} {
		orderRepo := NewMockOrderRepository()
		svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

		order := pendingOrder("order-1", domain.VehicleTierCar)
		order.Status = status
		if status != domain.OrderStatusPending {
			order.DriverID = "driver-1"
		}
		orderRepo.AddOrder(order)

		cancelled, err := svc.CancelOrder(ctx, domain.CustomerIdentity("customer-1"), "order-1", "changed my mind")
		if err != nil {
			t.Errorf("cancel from %s: unexpected error: %v", status, err)
			continue
		}
		if cancelled.Status != domain.OrderStatusCancelled {
			t.Errorf("cancel from %s: expected cancelled, got %s", status, cancelled.Status)
		}
		// A cancelled order has no assigned driver.
		if cancelled.DriverID != "" {
			t.Errorf("cancel from %s: expected driver unassigned, got %q", status, cancelled.DriverID)
		}
		if got := orderRepo.GetOrder("order-1").DriverID; got != "" {
			t.Errorf("cancel from %s: expected persisted driver cleared, got %q", status, got)
		}
	}
}

func TestCancel_RejectedOnceInTransit(t *testing.T) {
	ctx := context.Background()

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusInTransit,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	} {
		orderRepo := NewMockOrderRepository()
		svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

		order := assignedOrder("order-1", "driver-1")
		order.Status = status
		orderRepo.AddOrder(order)

		_, err := svc.CancelOrder(ctx, domain.CustomerIdentity("customer-1"), "order-1", "too late")
		if !errors.Is(err, service.ErrInvalidTransition) {
			t.Errorf("cancel from %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestCancel_NotifiesAssignedDriver(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	broadcast := NewMockBroadcaster()
	svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), broadcast)

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	if _, err := svc.CancelOrder(ctx, domain.CustomerIdentity("customer-1"), "order-1", "no longer needed"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	events := broadcast.EventsIn(hub.DriverRoom("driver-1"))
	if len(events) != 1 || events[0] != hub.EventOrderCancelled {
		t.Errorf("expected [orderCancelled] in driver room, got %v", events)
	}
}

func TestCancel_OnlyOwningCustomer(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	for _, id := range []domain.Identity{
		domain.CustomerIdentity("customer-2"),
		domain.DriverIdentity("driver-1"),
		domain.Anonymous(),
	} {
		if _, err := svc.CancelOrder(ctx, id, "order-1", "nope"); !errors.Is(err, service.ErrUnauthorized) {
			t.Errorf("%s/%s: expected ErrUnauthorized, got %v", id.Role, id.Subject, err)
		}
	}
}

func TestHistory_AppendOnlyAcrossLifecycle(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	svc := newOrderService(orderRepo, driverRepo, NewMockPromoRepository(), NewMockBroadcaster())

	order := pendingOrder("order-1", domain.VehicleTierCar)
	if err := orderRepo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := orderRepo.ClaimPending(ctx, "order-1", "driver-1", time.Now()); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))

	driver := domain.DriverIdentity("driver-1")
	seen := orderRepo.HistoryLen("order-1")

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusDriverArrived,
		domain.OrderStatusPickupComplete,
		domain.OrderStatusInTransit,
		domain.OrderStatusDelivered,
	} {
		before, err := svc.History(ctx, driver, "order-1")
		if err != nil {
			t.Fatalf("history read failed: %v", err)
		}

		if _, err := svc.PushStatus(ctx, driver, "order-1", service.PushStatusRequest{To: next}); err != nil {
			t.Fatalf("push to %s failed: %v", next, err)
		}

		after, err := svc.History(ctx, driver, "order-1")
		if err != nil {
			t.Fatalf("history read failed: %v", err)
		}
		if len(after) != len(before)+1 {
			t.Fatalf("push to %s: expected %d entries, got %d", next, len(before)+1, len(after))
		}
		// Existing entries are never rewritten.
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("entry %d mutated: %v → %v", i, before[i], after[i])
			}
		}
		seen++
	}

	if got := orderRepo.HistoryLen("order-1"); got != seen {
		t.Errorf("expected %d history entries, got %d", seen, got)
	}
}

func TestRateOrder_DeliveredOnly(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	svc := newOrderService(orderRepo, driverRepo, NewMockPromoRepository(), NewMockBroadcaster())

	order := assignedOrder("order-1", "driver-1")
	order.Status = domain.OrderStatusInTransit
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(onlineDriver("driver-1", domain.VehicleTierCar))

	customer := domain.CustomerIdentity("customer-1")

	if err := svc.RateOrder(ctx, customer, "order-1", 5); !errors.Is(err, service.ErrOrderNotDelivered) {
		t.Errorf("expected ErrOrderNotDelivered, got %v", err)
	}

	order.Status = domain.OrderStatusDelivered
	orderRepo.AddOrder(order)

	if err := svc.RateOrder(ctx, customer, "order-1", 0); !errors.Is(err, service.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating for 0, got %v", err)
	}
	if err := svc.RateOrder(ctx, customer, "order-1", 6); !errors.Is(err, service.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating for 6, got %v", err)
	}

	if err := svc.RateOrder(ctx, customer, "order-1", 4); err != nil {
		t.Fatalf("rating failed: %v", err)
	}
	d := driverRepo.GetDriver("driver-1")
	if d.Rating != 4 || d.RatingCount != 1 {
		t.Errorf("expected rating 4 over 1 rating, got %f over %d", d.Rating, d.RatingCount)
	}
}

func TestGetOrder_PartiesOnly(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newOrderService(orderRepo, NewMockDriverRepository(), NewMockPromoRepository(), NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	for _, id := range []domain.Identity{
		domain.CustomerIdentity("customer-1"),
		domain.DriverIdentity("driver-1"),
	} {
		if _, err := svc.GetOrder(ctx, id, "order-1"); err != nil {
			t.Errorf("%s/%s: expected access, got %v", id.Role, id.Subject, err)
		}
	}

	for _, id := range []domain.Identity{
		domain.CustomerIdentity("customer-2"),
		domain.DriverIdentity("driver-2"),
		domain.Anonymous(),
	} {
		if _, err := svc.GetOrder(ctx, id, "order-1"); !errors.Is(err, service.ErrUnauthorized) {
			t.Errorf("%s/%s: expected ErrUnauthorized, got %v", id.Role, id.Subject, err)
		}
	}
}
