package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"delivery/internal/domain"
	"delivery/internal/fare"
	"delivery/internal/hub"
	"delivery/internal/repository"
)

// DispatcherInterface is the slice of the dispatch service the order
// service needs: announcing a fresh order to its tier pool.
type DispatcherInterface interface {
	Announce(ctx context.Context, order *domain.Order)
}

// Broadcaster is the slice of the realtime hub the services need.
type Broadcaster interface {
	Broadcast(room string, event hub.Event)
	BroadcastExcept(room string, event hub.Event, exceptSubject string)
}

// driverPushable maps driver-pushed progress statuses to the status
// they advance from. Claim (driver_assigned) and cancellation go
// through their own operations, never through PushStatus.
var driverPushable = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusDriverArrived:  domain.OrderStatusDriverAssigned,
	domain.OrderStatusPickupComplete: domain.OrderStatusDriverArrived,
	domain.OrderStatusInTransit:      domain.OrderStatusPickupComplete,
	domain.OrderStatusDelivered:      domain.OrderStatusInTransit,
}

// OrderService handles order lifecycle operations.
type OrderService struct {
	orderRepo  repository.OrderRepository
	promoRepo  repository.PromoRepository
	driverRepo repository.DriverRepository
	dispatcher DispatcherInterface
	broadcast  Broadcaster
	notifier   *NotificationService
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repository.OrderRepository,
	promoRepo repository.PromoRepository,
	driverRepo repository.DriverRepository,
	dispatcher DispatcherInterface,
	broadcast Broadcaster,
	notifier *NotificationService,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		promoRepo:  promoRepo,
		driverRepo: driverRepo,
		dispatcher: dispatcher,
		broadcast:  broadcast,
		notifier:   notifier,
	}
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	Pickup          domain.Location
	Drop            domain.Location
	Stops           []domain.Location
	VehicleTier     domain.VehicleTier
	DistanceMeters  int64
	DurationSeconds int64
	PromoCode       string
	PaymentMethod   domain.PaymentMethod
}

// CreateOrder validates the itinerary, quotes the fare, applies the
// promo (consuming one usage slot), persists the order in pending, and
// announces it to the matching vehicle-tier pool.
func (s *OrderService) CreateOrder(ctx context.Context, id domain.Identity, req CreateOrderRequest) (*domain.Order, error) {
	if id.Role != domain.RoleCustomer || !id.Authenticated() {
		return nil, unauthorized(id, "create an order")
	}
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	quote, ok := fare.Quote(req.VehicleTier, req.DistanceMeters, req.DurationSeconds)
	if !ok {
		return nil, ErrInvalidVehicleTier
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New().String(),
		CustomerID:      id.Subject,
		Pickup:          req.Pickup,
		Drop:            req.Drop,
		Stops:           req.Stops,
		VehicleTier:     req.VehicleTier,
		DistanceMeters:  req.DistanceMeters,
		DurationSeconds: req.DurationSeconds,
		BaseFare:        quote.Base,
		DistanceFare:    quote.DistanceFare,
		TimeFare:        quote.TimeFare,
		TotalFare:       quote.Total,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
	}

	if req.PromoCode != "" {
		promo, err := s.promoRepo.GetByCode(ctx, req.PromoCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrPromoNotEligible
			}
			return nil, err
		}
		discount, ok := fare.PromoDiscount(promo, quote.Total, now)
		if !ok {
			return nil, ErrPromoNotEligible
		}

		// Consume the usage slot before persisting: the capped UPDATE
		// is the authoritative arbiter under concurrent creations.
		if err := s.promoRepo.IncrementUsage(ctx, req.PromoCode); err != nil {
			if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
				return nil, ErrPromoNotEligible
			}
			return nil, err
		}

		order.PromoCode = req.PromoCode
		order.Discount = discount
		order.TotalFare = quote.Total - discount
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if order.PromoCode != "" {
			// Return the slot: the counter must only reflect orders
			// that actually exist.
			if relErr := s.promoRepo.ReleaseUsage(ctx, order.PromoCode); relErr != nil {
				log.Printf("order %s: promo %s usage release failed: %v", order.ID, order.PromoCode, relErr)
			}
		}
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.Announce(ctx, order)
	}
	return order, nil
}

// PushStatusRequest contains the parameters of a driver status push.
type PushStatusRequest struct {
	To   domain.OrderStatus
	Lat  float64 // optional reported position, recorded in history
	Lng  float64
	Note string
}

// PushStatus applies a driver-pushed progress transition. Only the
// assigned driver may push, and only along the delivery chain; any
// other actor or step is rejected explicitly, never silently ignored.
func (s *OrderService) PushStatus(ctx context.Context, id domain.Identity, orderID string, req PushStatusRequest) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if id.Role != domain.RoleDriver || !id.Authenticated() {
		return nil, unauthorized(id, "push an order status")
	}

	from, ok := driverPushable[req.To]
	if !ok {
		order, err := s.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransition(order.Status, req.To, id.Role)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DriverID != id.Subject {
		return nil, unauthorized(id, "push status for an order assigned to another driver")
	}
	if order.Status != from {
		return nil, invalidTransition(order.Status, req.To, id.Role)
	}

	upd := repository.TransitionUpdate{
		To:           req.To,
		At:           time.Now(),
		Lat:          req.Lat,
		Lng:          req.Lng,
		Note:         req.Note,
		SetPickedUp:  req.To == domain.OrderStatusPickupComplete,
		SetDelivered: req.To == domain.OrderStatusDelivered,
	}

	updated, err := s.orderRepo.TransitionStatus(ctx, orderID, id.Subject, from, upd)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The guard failed between our read and the update; re-read
			// to report the order's actual state.
			fresh, readErr := s.orderRepo.GetByID(ctx, orderID)
			if readErr != nil {
				return nil, readErr
			}
			if fresh.DriverID != id.Subject {
				return nil, unauthorized(id, "push status for an order assigned to another driver")
			}
			return nil, invalidTransition(fresh.Status, req.To, id.Role)
		}
		return nil, err
	}

	s.announceStatus(updated, req.Lat, req.Lng)

	if req.To == domain.OrderStatusDelivered {
		if err := s.driverRepo.IncrementDeliveries(ctx, id.Subject); err != nil {
			log.Printf("order %s: delivery counter update failed: %v", orderID, err)
		}
		if s.notifier != nil {
			_ = s.notifier.NotifyDelivered(ctx, updated)
		}
	}

	return updated, nil
}

// CancelOrder cancels an order on behalf of its customer. Allowed from
// pending through pickup_complete; once in transit the order is
// committed to completion.
func (s *OrderService) CancelOrder(ctx context.Context, id domain.Identity, orderID, reason string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !id.IsCustomer(order.CustomerID) {
		return nil, unauthorized(id, "cancel this order")
	}
	if !order.Status.Cancellable() {
		return nil, invalidTransition(order.Status, domain.OrderStatusCancelled, id.Role)
	}

	// Cancellation unassigns the driver, so capture who to notify
	// before the update clears the column.
	assignedDriver := order.DriverID

	cancelled, err := s.orderRepo.Cancel(ctx, orderID, reason, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			fresh, readErr := s.orderRepo.GetByID(ctx, orderID)
			if readErr != nil {
				return nil, readErr
			}
			return nil, invalidTransition(fresh.Status, domain.OrderStatusCancelled, id.Role)
		}
		return nil, err
	}

	if s.broadcast != nil {
		s.broadcast.Broadcast(hub.OrderRoom(cancelled.ID), hub.NewEvent(hub.EventOrderStatusUpdate, statusPayload(cancelled, 0, 0)))
		if assignedDriver != "" {
			s.broadcast.Broadcast(hub.DriverRoom(assignedDriver), hub.NewEvent(hub.EventOrderCancelled, map[string]string{
				"order_id": cancelled.ID,
				"reason":   cancelled.CancelReason,
			}))
		}
	}
	if s.notifier != nil && assignedDriver != "" {
		_ = s.notifier.NotifyOrderCancelled(ctx, cancelled, assignedDriver)
	}

	return cancelled, nil
}

// RateOrder records the customer's post-delivery rating, folding it
// into the driver's running average.
func (s *OrderService) RateOrder(ctx context.Context, id domain.Identity, orderID string, rating int) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !id.IsCustomer(order.CustomerID) {
		return unauthorized(id, "rate this order")
	}
	if order.Status != domain.OrderStatusDelivered {
		return ErrOrderNotDelivered
	}

	return s.driverRepo.RecordRating(ctx, order.DriverID, rating)
}

// GetOrder retrieves an order for one of its parties.
func (s *OrderService) GetOrder(ctx context.Context, id domain.Identity, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(id, order) {
		return nil, unauthorized(id, "view this order")
	}
	return order, nil
}

// History returns an order's status audit log for one of its parties.
func (s *OrderService) History(ctx context.Context, id domain.Identity, orderID string) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.GetOrder(ctx, id, orderID); err != nil {
		return nil, err
	}
	return s.orderRepo.History(ctx, orderID)
}

// CustomerOrders returns a customer's own orders, newest first.
func (s *OrderService) CustomerOrders(ctx context.Context, id domain.Identity, customerID string) ([]*domain.Order, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomerID
	}
	if !id.IsCustomer(customerID) {
		return nil, unauthorized(id, "list another customer's orders")
	}
	return s.orderRepo.GetByCustomer(ctx, customerID)
}

// CanJoinOrderRoom implements hub.Authorizer: only the owning customer
// and the assigned driver belong in an order room.
func (s *OrderService) CanJoinOrderRoom(ctx context.Context, id domain.Identity, orderID string) bool {
	if !id.Authenticated() {
		return false
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return false
	}
	return s.isParty(id, order)
}

// CanJoinChatRoom implements hub.Authorizer with the same party rule.
func (s *OrderService) CanJoinChatRoom(ctx context.Context, id domain.Identity, orderID string) bool {
	return s.CanJoinOrderRoom(ctx, id, orderID)
}

func (s *OrderService) isParty(id domain.Identity, order *domain.Order) bool {
	if id.IsCustomer(order.CustomerID) {
		return true
	}
	return order.DriverID != "" && id.IsDriver(order.DriverID)
}

func (s *OrderService) announceStatus(order *domain.Order, lat, lng float64) {
	if s.broadcast == nil {
		return
	}
	s.broadcast.Broadcast(hub.OrderRoom(order.ID), hub.NewEvent(hub.EventOrderStatusUpdate, statusPayload(order, lat, lng)))
}

func statusPayload(order *domain.Order, lat, lng float64) map[string]any {
	p := map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
	}
	if lat != 0 || lng != 0 {
		p["lat"] = lat
		p["lng"] = lng
	}
	return p
}

func validateCreateRequest(req CreateOrderRequest) error {
	if !validCoordinate(req.Pickup.Lat, req.Pickup.Lng) {
		return ErrInvalidPickupLocation
	}
	if !validCoordinate(req.Drop.Lat, req.Drop.Lng) {
		return ErrInvalidDropLocation
	}
	for _, stop := range req.Stops {
		if !validCoordinate(stop.Lat, stop.Lng) {
			return ErrInvalidStopLocation
		}
	}
	if !domain.ValidVehicleTier(req.VehicleTier) {
		return ErrInvalidVehicleTier
	}
	switch req.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodWallet:
	default:
		return ErrInvalidPaymentMethod
	}
	return nil
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
