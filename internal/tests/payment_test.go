package tests

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"delivery/internal/domain"
	"delivery/internal/service"
)

const webhookSecret = "test-webhook-secret"

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newPaymentService(orderRepo *MockOrderRepository) *service.PaymentService {
	return service.NewPaymentService(orderRepo, service.NewHMACVerifier(webhookSecret), service.NewNotificationService())
}

func TestPaymentConfirm_MarksPaid(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newPaymentService(orderRepo)

	order := assignedOrder("order-1", "driver-1")
	order.PaymentStatus = domain.PaymentStatusPending
	orderRepo.AddOrder(order)

	payload := []byte(`{"order_id":"order-1","success":true}`)
	updated, err := svc.Confirm(ctx, "order-1", payload, sign(payload), true)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected PAID, got %s", updated.PaymentStatus)
	}
	if got := orderRepo.GetOrder("order-1").PaymentStatus; got != domain.PaymentStatusPaid {
		t.Errorf("expected persisted PAID, got %s", got)
	}
}

func TestPaymentConfirm_MarksFailed(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newPaymentService(orderRepo)

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	payload := []byte(`{"order_id":"order-1","success":false}`)
	updated, err := svc.Confirm(ctx, "order-1", payload, sign(payload), false)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("expected FAILED, got %s", updated.PaymentStatus)
	}
}

func TestPaymentConfirm_BadSignatureRejected(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newPaymentService(orderRepo)

	order := assignedOrder("order-1", "driver-1")
	order.PaymentStatus = domain.PaymentStatusPending
	orderRepo.AddOrder(order)

	payload := []byte(`{"order_id":"order-1","success":true}`)
	_, err := svc.Confirm(ctx, "order-1", payload, "deadbeef", true)
	if !errors.Is(err, service.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// Order state must be untouched.
	if got := orderRepo.GetOrder("order-1").PaymentStatus; got != domain.PaymentStatusPending {
		t.Errorf("expected payment still pending, got %s", got)
	}
}

func TestPaymentConfirm_TamperedPayloadRejected(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newPaymentService(orderRepo)

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	original := []byte(`{"order_id":"order-1","success":false}`)
	tampered := []byte(`{"order_id":"order-1","success":true}`)

	_, err := svc.Confirm(ctx, "order-1", tampered, sign(original), true)
	if !errors.Is(err, service.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}
