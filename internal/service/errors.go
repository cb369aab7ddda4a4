package service

import (
	"errors"
	"fmt"

	"delivery/internal/domain"
)

var (
	// ErrInvalidCustomerID is returned when the customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidOrderID is returned when the order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidDriverID is returned when the driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are
	// out of range.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropLocation is returned when drop coordinates are out
	// of range.
	ErrInvalidDropLocation = errors.New("invalid drop location")

	// ErrInvalidStopLocation is returned when an intermediate stop's
	// coordinates are out of range.
	ErrInvalidStopLocation = errors.New("invalid stop location")

	// ErrInvalidVehicleTier is returned for an unknown vehicle tier.
	ErrInvalidVehicleTier = errors.New("invalid vehicle tier")

	// ErrInvalidPaymentMethod is returned for an unknown payment method.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidRating is returned when a rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrEmptyMessage is returned when a chat message has no body.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrPromoNotEligible is returned when a promo code cannot be
	// applied to the order.
	ErrPromoNotEligible = errors.New("promo code not eligible")

	// ErrOrderTaken is the expected outcome for a claim race loser:
	// another driver already won the order. Callers treat it as a
	// normal branch, not a fault.
	ErrOrderTaken = errors.New("order already taken")

	// ErrOrderNotAvailable is returned when claiming a non-existent or
	// no-longer-pending order.
	ErrOrderNotAvailable = errors.New("order not available")

	// ErrDriverNotEligible is returned when the claiming driver fails
	// the tier, active, or online eligibility checks.
	ErrDriverNotEligible = errors.New("driver not eligible for this order")

	// ErrOrderNotDelivered is returned when rating an order that has
	// not completed delivery.
	ErrOrderNotDelivered = errors.New("order not delivered")

	// ErrInvalidSignature is returned when a payment confirmation's
	// signature does not verify.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrUnauthorized is the match target for UnauthorizedError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is the match target for
	// InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid transition")
)

// InvalidTransitionError rejects a state-machine guard violation. It
// names the order's actual state, the requested state, and the actor so
// the failure is actionable rather than a bare conflict.
type InvalidTransitionError struct {
	Current   domain.OrderStatus
	Requested domain.OrderStatus
	Actor     domain.Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s by %s", e.Current, e.Requested, e.Actor)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// UnauthorizedError rejects an actor-identity mismatch. Kept distinct
// from InvalidTransitionError because the fix differs: wrong identity
// versus wrong timing.
type UnauthorizedError struct {
	Actor  domain.Role
	Action string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s is not authorized to %s", e.Actor, e.Action)
}

// Is makes errors.Is(err, ErrUnauthorized) match.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

func unauthorized(id domain.Identity, action string) error {
	return &UnauthorizedError{Actor: id.Role, Action: action}
}

func invalidTransition(current, requested domain.OrderStatus, actor domain.Role) error {
	return &InvalidTransitionError{Current: current, Requested: requested, Actor: actor}
}
