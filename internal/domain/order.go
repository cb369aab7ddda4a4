package domain

import "time"

// OrderStatus represents the current status of a delivery order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusDriverAssigned OrderStatus = "driver_assigned"
	OrderStatusDriverArrived  OrderStatus = "driver_arrived"
	OrderStatusPickupComplete OrderStatus = "pickup_complete"
	OrderStatusInTransit      OrderStatus = "in_transit"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// allowedTransitions is the executable transition table for the order
// lifecycle. Cancellation is permitted up to pickup_complete; once the
// order is in transit it is committed to completion.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusDriverAssigned, OrderStatusCancelled},
	OrderStatusDriverAssigned: {OrderStatusDriverArrived, OrderStatusCancelled},
	OrderStatusDriverArrived:  {OrderStatusPickupComplete, OrderStatusCancelled},
	OrderStatusPickupComplete: {OrderStatusInTransit, OrderStatusCancelled},
	OrderStatusInTransit:      {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

// CanTransition reports whether moving from one status to another is a
// valid lifecycle step.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status ends the order lifecycle.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsValid reports whether the status is a known lifecycle state.
func (s OrderStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Cancellable reports whether a customer may still cancel the order.
func (s OrderStatus) Cancellable() bool {
	return CanTransition(s, OrderStatusCancelled)
}

// RequiresDriver reports whether an order in this status must have an
// assigned driver. DriverID is non-empty if and only if this holds.
func (s OrderStatus) RequiresDriver() bool {
	switch s {
	case OrderStatusDriverAssigned, OrderStatusDriverArrived,
		OrderStatusPickupComplete, OrderStatusInTransit, OrderStatusDelivered:
		return true
	}
	return false
}

// PaymentMethod represents the payment method for an order.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
)

// PaymentStatus represents the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Location is a geocoordinate with an optional street address and
// contact, used for pickup, drop, and intermediate stops.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
	Contact string
}

// Order represents a single delivery request from pickup to drop.
type Order struct {
	ID         string
	CustomerID string
	DriverID   string // empty until a driver claims the order

	Pickup      Location
	Drop        Location
	Stops       []Location // ordered intermediate stops
	VehicleTier VehicleTier

	DistanceMeters  int64
	DurationSeconds int64
	BaseFare        int64
	DistanceFare    int64
	TimeFare        int64
	Discount        int64
	PromoCode       string // empty when no promo applied
	TotalFare       int64
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus

	Status       OrderStatus
	CancelReason string

	CreatedAt   time.Time
	AcceptedAt  time.Time
	PickedUpAt  time.Time
	DeliveredAt time.Time
	CancelledAt time.Time
}

// StatusHistoryEntry is one record in an order's append-only audit log.
// Entries are only ever appended, never mutated.
type StatusHistoryEntry struct {
	OrderID    string
	Status     OrderStatus
	Lat        float64 // zero unless the actor reported a position
	Lng        float64
	Note       string
	RecordedAt time.Time
}
