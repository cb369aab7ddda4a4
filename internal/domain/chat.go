package domain

import "time"

// ChatMessage is one message exchanged between the customer and the
// driver of an order. Messages are append-only; only the read flag is
// ever mutated.
type ChatMessage struct {
	ID       string
	OrderID  string
	SenderID string
	Role     Role // RoleCustomer or RoleDriver
	Body     string
	Read     bool
	SentAt   time.Time
}
