package service

import (
	"context"
	"errors"
	"log"
	"time"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/redis"
	"delivery/internal/repository"
)

const claimLockTTL = 5 * time.Second

// DispatchService resolves exactly one driver-claim winner per order
// and runs the pool-room fan-out around the claim.
type DispatchService struct {
	orderRepo     repository.OrderRepository
	driverRepo    repository.DriverRepository
	lockStore     redis.LockStoreInterface
	presenceStore redis.PresenceStoreInterface
	broadcast     Broadcaster
	notifier      *NotificationService
	searchTimeout time.Duration
}

// NewDispatchService creates a new DispatchService. searchTimeout is
// how long an announced order may sit unclaimed before the customer is
// told no drivers are available; the order itself stays pending and
// cancellable.
func NewDispatchService(
	orderRepo repository.OrderRepository,
	driverRepo repository.DriverRepository,
	lockStore redis.LockStoreInterface,
	presenceStore redis.PresenceStoreInterface,
	broadcast Broadcaster,
	notifier *NotificationService,
	searchTimeout time.Duration,
) *DispatchService {
	return &DispatchService{
		orderRepo:     orderRepo,
		driverRepo:    driverRepo,
		lockStore:     lockStore,
		presenceStore: presenceStore,
		broadcast:     broadcast,
		notifier:      notifier,
		searchTimeout: searchTimeout,
	}
}

// Ensure DispatchService satisfies the order service's dispatcher slice.
var _ DispatcherInterface = (*DispatchService)(nil)

// ClaimResult is the outcome of a won claim.
type ClaimResult struct {
	Order *domain.Order
}

// TryClaim races a driver's accept against every other claim on the
// order. The decision is a conditional update on the order row, so of N
// concurrent claims exactly one wins; the rest get ErrOrderTaken as a
// normal outcome, not a fault.
func (s *DispatchService) TryClaim(ctx context.Context, driverID, orderID string) (*ClaimResult, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotEligible
		}
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotAvailable
		}
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		if order.Status == domain.OrderStatusDriverAssigned {
			return nil, ErrOrderTaken
		}
		return nil, ErrOrderNotAvailable
	}
	if !driver.Eligible(order.VehicleTier) {
		return nil, ErrDriverNotEligible
	}

	// Advisory lock to shed near-simultaneous duplicate claims before
	// they hit the database. The conditional update below stays the
	// authoritative arbiter.
	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireOrderLock(ctx, orderID, claimLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrOrderTaken
		}
		defer func() {
			_ = s.lockStore.ReleaseOrderLock(ctx, orderID)
		}()
	}

	claimed, err := s.orderRepo.ClaimPending(ctx, orderID, driverID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrOrderTaken
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotAvailable
		}
		return nil, err
	}

	s.announceAssignment(claimed, driver)

	if s.notifier != nil {
		_ = s.notifier.NotifyDriverAssigned(ctx, claimed, driver)
	}

	return &ClaimResult{Order: claimed}, nil
}

// Announce broadcasts a fresh order into its vehicle-tier pool and arms
// the search timeout.
func (s *DispatchService) Announce(ctx context.Context, order *domain.Order) {
	if s.broadcast != nil {
		s.broadcast.Broadcast(hub.TierPoolRoom(string(order.VehicleTier)), hub.NewEvent(hub.EventNewOrder, newOrderPayload(order)))
	}

	if online, err := s.presenceStore.OnlineCount(ctx, order.VehicleTier); err == nil && online == 0 {
		log.Printf("dispatch: order %s announced with no online %s drivers", order.ID, order.VehicleTier)
	}

	if s.searchTimeout > 0 {
		time.AfterFunc(s.searchTimeout, func() {
			s.expireSearch(order.ID)
		})
	}
}

// expireSearch tells the customer nobody took the order. The order
// remains pending: it can still be claimed late or cancelled, that
// policy belongs to the customer.
func (s *DispatchService) expireSearch(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil || order.Status != domain.OrderStatusPending {
		return
	}

	if s.broadcast != nil {
		s.broadcast.Broadcast(hub.OrderRoom(orderID), hub.NewEvent(hub.EventNoDriversAvailable, map[string]string{
			"order_id": orderID,
		}))
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyNoDrivers(ctx, order)
	}
}

// announceAssignment notifies the customer's order room and evicts the
// order from the tier pool, excluding the winner so losers stop trying
// without the winner seeing their own eviction notice.
func (s *DispatchService) announceAssignment(order *domain.Order, driver *domain.Driver) {
	if s.broadcast == nil {
		return
	}

	s.broadcast.Broadcast(hub.OrderRoom(order.ID), hub.NewEvent(hub.EventDriverAssigned, map[string]any{
		"order_id":      order.ID,
		"driver_id":     driver.ID,
		"driver_name":   driver.Name,
		"vehicle_make":  driver.VehicleMake,
		"vehicle_plate": driver.VehiclePlate,
		"rating":        driver.Rating,
	}))

	s.broadcast.BroadcastExcept(
		hub.TierPoolRoom(string(order.VehicleTier)),
		hub.NewEvent(hub.EventOrderTaken, map[string]string{"order_id": order.ID}),
		driver.ID,
	)
}

func newOrderPayload(order *domain.Order) map[string]any {
	return map[string]any{
		"order_id":     order.ID,
		"vehicle_tier": string(order.VehicleTier),
		"pickup": map[string]any{
			"lat":     order.Pickup.Lat,
			"lng":     order.Pickup.Lng,
			"address": order.Pickup.Address,
		},
		"drop": map[string]any{
			"lat":     order.Drop.Lat,
			"lng":     order.Drop.Lng,
			"address": order.Drop.Address,
		},
		"distance_meters": order.DistanceMeters,
		"total_fare":      order.TotalFare,
	}
}
