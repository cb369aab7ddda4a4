package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"delivery/internal/domain"
	"delivery/internal/repository"
)

// PaymentVerifier checks a gateway callback's authenticity.
type PaymentVerifier interface {
	Verify(payload []byte, signature string) bool
}

// HMACVerifier verifies gateway callbacks with an HMAC-SHA256 shared
// secret.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier bound to the gateway secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify recomputes the payload's HMAC and compares it in constant time
// against the hex-encoded signature.
func (v *HMACVerifier) Verify(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PaymentService handles payment confirmation callbacks from the
// gateway.
type PaymentService struct {
	orderRepo repository.OrderRepository
	verifier  PaymentVerifier
	notifier  *NotificationService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(orderRepo repository.OrderRepository, verifier PaymentVerifier, notifier *NotificationService) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		verifier:  verifier,
		notifier:  notifier,
	}
}

// Confirm records the gateway's verdict for an order. The raw callback
// payload must verify against its signature before anything is written.
func (s *PaymentService) Confirm(ctx context.Context, orderID string, payload []byte, signature string, success bool) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if !s.verifier.Verify(payload, signature) {
		return nil, ErrInvalidSignature
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	status := domain.PaymentStatusPaid
	if !success {
		status = domain.PaymentStatusFailed
	}
	if err := s.orderRepo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.PaymentStatus = status

	if s.notifier != nil {
		_ = s.notifier.NotifyPaymentUpdate(ctx, order)
	}
	return order, nil
}
