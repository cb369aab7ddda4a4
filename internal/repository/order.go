package repository

import (
	"context"
	"time"

	"delivery/internal/domain"
)

// TransitionUpdate enumerates exactly the fields a status transition may
// set. Every transition appends one history entry; the optional
// coordinate is recorded when the actor reported a position.
type TransitionUpdate struct {
	To           domain.OrderStatus
	At           time.Time
	Lat          float64
	Lng          float64
	Note         string
	SetPickedUp  bool
	SetDelivered bool
}

// OrderRepository defines the persistence operations for orders.
//
// ClaimPending and TransitionStatus are atomic conditional updates: the
// guard (current status, and for TransitionStatus the assigned driver)
// is evaluated inside the UPDATE, and the history append commits in the
// same transaction. Concurrent callers cannot both succeed.
type OrderRepository interface {
	// Create persists a new order and its creation history entry.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByCustomer retrieves a customer's orders, newest first.
	GetByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)

	// ClaimPending transitions an order from pending to driver_assigned
	// with the given driver, succeeding only if the order is still
	// pending. Returns ErrConflict when another driver won the race or
	// the order left pending, ErrNotFound when no such order exists.
	ClaimPending(ctx context.Context, orderID, driverID string, at time.Time) (*domain.Order, error)

	// TransitionStatus applies upd to the order, succeeding only if the
	// order is currently in from AND assigned to driverID. Returns
	// ErrConflict when the guard fails; callers re-read to distinguish
	// a wrong state from a wrong actor.
	TransitionStatus(ctx context.Context, orderID, driverID string, from domain.OrderStatus, upd TransitionUpdate) (*domain.Order, error)

	// Cancel transitions the order to cancelled, succeeding only if the
	// current status still permits cancellation.
	Cancel(ctx context.Context, orderID, reason string, at time.Time) (*domain.Order, error)

	// UpdatePaymentStatus sets the payment state of an order.
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error

	// History returns the order's status-history log, oldest first.
	History(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error)
}
