package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"delivery/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDriverAssigned NotificationType = "DRIVER_ASSIGNED"
	NotificationOrderCancelled NotificationType = "ORDER_CANCELLED"
	NotificationDelivered      NotificationType = "ORDER_DELIVERED"
	NotificationNoDrivers      NotificationType = "NO_DRIVERS_AVAILABLE"
	NotificationPaymentUpdate  NotificationType = "PAYMENT_UPDATE"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// NotificationService is the push/SMS boundary. Every call is
// fire-and-forget: a delivery failure never rolls back the transition
// it was attached to.
type NotificationService struct {
	// A real deployment would hold push (FCM/APNS) and SMS clients
	// here; delivery retries are the provider's policy, not the core's.
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyDriverAssigned tells the customer which driver took the order.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, order *domain.Order, driver *domain.Driver) error {
	return s.send(ctx, Notification{
		Type:        NotificationDriverAssigned,
		RecipientID: order.CustomerID,
		Title:       "Driver Assigned",
		Message:     fmt.Sprintf("%s is on the way to your pickup", driver.Name),
		Data: map[string]interface{}{
			"order_id":      order.ID,
			"driver_id":     driver.ID,
			"vehicle_plate": driver.VehiclePlate,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyOrderCancelled tells the formerly assigned driver the customer
// cancelled. The driver ID is passed in because cancellation unassigns
// the order.
func (s *NotificationService) NotifyOrderCancelled(ctx context.Context, order *domain.Order, driverID string) error {
	return s.send(ctx, Notification{
		Type:        NotificationOrderCancelled,
		RecipientID: driverID,
		Title:       "Order Cancelled",
		Message:     "The customer has cancelled the order",
		Data: map[string]interface{}{
			"order_id": order.ID,
			"reason":   order.CancelReason,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyDelivered tells the customer the delivery completed.
func (s *NotificationService) NotifyDelivered(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationDelivered,
		RecipientID: order.CustomerID,
		Title:       "Delivered",
		Message:     fmt.Sprintf("Your order was delivered. Total: %d", order.TotalFare),
		Data: map[string]interface{}{
			"order_id":   order.ID,
			"total_fare": order.TotalFare,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyNoDrivers tells the customer the driver search came up empty.
func (s *NotificationService) NotifyNoDrivers(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationNoDrivers,
		RecipientID: order.CustomerID,
		Title:       "No Drivers Available",
		Message:     "No drivers are available right now. You can keep waiting or cancel.",
		Data: map[string]interface{}{
			"order_id": order.ID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentUpdate tells the customer about a payment state change.
func (s *NotificationService) NotifyPaymentUpdate(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentUpdate,
		RecipientID: order.CustomerID,
		Title:       "Payment Update",
		Message:     fmt.Sprintf("Payment status: %s", order.PaymentStatus),
		Data: map[string]interface{}{
			"order_id":       order.ID,
			"payment_status": string(order.PaymentStatus),
		},
		CreatedAt: time.Now(),
	})
}

// send delivers a notification (log-backed stand-in for the provider).
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		n.Type, n.RecipientID, n.Title, n.Message)
	return nil
}
