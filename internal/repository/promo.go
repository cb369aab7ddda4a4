package repository

import (
	"context"

	"delivery/internal/domain"
)

// PromoRepository defines the persistence operations for promo codes.
type PromoRepository interface {
	// GetByCode retrieves a promo code.
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)

	// IncrementUsage atomically adds one to the promo's usage counter,
	// succeeding only while the usage cap (if any) is not exhausted.
	// Returns ErrConflict when the cap is reached.
	IncrementUsage(ctx context.Context, code string) error

	// ReleaseUsage returns one usage slot, compensating an increment
	// whose order creation did not go through.
	ReleaseUsage(ctx context.Context, code string) error
}

// ChatRepository defines the persistence operations for chat messages.
type ChatRepository interface {
	// Append persists a new message.
	Append(ctx context.Context, msg *domain.ChatMessage) error

	// ListByOrder returns an order's messages, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]*domain.ChatMessage, error)

	// MarkRead flags all messages on the order sent by the counterparty
	// of readerID as read.
	MarkRead(ctx context.Context, orderID, readerID string) error
}
